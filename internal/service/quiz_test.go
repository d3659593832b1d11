package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"morality-quiz-backend/internal/dto"
	"morality-quiz-backend/internal/model"
	"morality-quiz-backend/internal/token"
)

func newQuizService(results *fakeResultRepo) (QuizService, *token.Manager) {
	tokens := token.NewManager("test-secret", time.Hour, 30*24*time.Hour)
	return NewQuizService(results, tokens), tokens
}

func TestScoreAnswersNormalizesPerCategory(t *testing.T) {
	scores, dominant := scoreAnswers([]dto.Answer{
		{Category: "care", Value: 5},
		{Category: "care", Value: 3},
		{Category: "Fairness", Value: 2},
		{Category: " fairness ", Value: 2},
	})

	if got := scores["care"]; got != 80 {
		t.Fatalf("care = %v, want 80", got)
	}
	if got := scores["fairness"]; got != 40 {
		t.Fatalf("fairness = %v, want 40 (case and whitespace folded)", got)
	}
	if dominant != "care" {
		t.Fatalf("dominant = %q, want care", dominant)
	}
}

func TestScoreAnswersBreaksTiesDeterministically(t *testing.T) {
	answers := []dto.Answer{
		{Category: "loyalty", Value: 4},
		{Category: "authority", Value: 4},
	}

	for i := 0; i < 10; i++ {
		_, dominant := scoreAnswers(answers)
		if dominant != "authority" {
			t.Fatalf("tie broke to %q, want authority (lexicographic)", dominant)
		}
	}
}

func TestScoreAnswersClampsOutOfRangeValues(t *testing.T) {
	scores, _ := scoreAnswers([]dto.Answer{
		{Category: "care", Value: 99},
		{Category: "purity", Value: -3},
	})

	if scores["care"] != 100 {
		t.Fatalf("care = %v, want 100", scores["care"])
	}
	if scores["purity"] != 0 {
		t.Fatalf("purity = %v, want 0", scores["purity"])
	}
}

func TestSubmitMintsGuestTokenForAnonymous(t *testing.T) {
	results := newFakeResultRepo()
	svc, tokens := newQuizService(results)

	resp, err := svc.Submit(context.Background(), &dto.SubmitQuizRequest{
		Answers:    []dto.Answer{{Category: "care", Value: 4}},
		GuestEmail: "guest@example.com",
	}, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.GuestToken == "" {
		t.Fatal("anonymous submission must return a guest token")
	}

	claims, err := tokens.VerifyGuest(resp.GuestToken)
	if err != nil {
		t.Fatalf("verify guest token: %v", err)
	}
	if claims.ResultID != resp.ResultID {
		t.Fatalf("token bound to %q, want %q", claims.ResultID, resp.ResultID)
	}

	stored := results.get(uuid.MustParse(resp.ResultID))
	if stored.GuestTokenID != claims.ID {
		t.Fatal("token jti not stored on the result")
	}
	if stored.GuestEmail != "guest@example.com" {
		t.Fatalf("guest email = %q", stored.GuestEmail)
	}
}

func TestSubmitSkipsGuestTokenForAuthedUser(t *testing.T) {
	results := newFakeResultRepo()
	svc, _ := newQuizService(results)

	userID := uuid.New()
	resp, err := svc.Submit(context.Background(), &dto.SubmitQuizRequest{
		Answers: []dto.Answer{{Category: "care", Value: 4}},
	}, &userID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.GuestToken != "" {
		t.Fatal("authed submission must not mint a guest token")
	}

	stored := results.get(uuid.MustParse(resp.ResultID))
	if stored.UserID == nil || *stored.UserID != userID {
		t.Fatalf("result not owned by submitter: %+v", stored)
	}
}

func TestSubmitRejectsEmptyAnswers(t *testing.T) {
	svc, _ := newQuizService(newFakeResultRepo())

	if _, err := svc.Submit(context.Background(), &dto.SubmitQuizRequest{}, nil); err == nil {
		t.Fatal("empty submission must fail")
	}
}

func TestGetResultWithholdsAnalysisFromStrangers(t *testing.T) {
	results := newFakeResultRepo()
	svc, _ := newQuizService(results)

	owner := uuid.New()
	resultID := uuid.New()
	method := model.AccessPurchase
	results.add(&model.QuizResult{
		ID:             resultID,
		UserID:         &owner,
		Category:       "care",
		Analysis:       "full analysis",
		IsPurchased:    true,
		IsDetailed:     true,
		PurchaseStatus: model.PurchaseCompleted,
		AccessMethod:   &method,
	})

	// Anonymous caller holding only the result id.
	resp, err := svc.GetResult(context.Background(), &VerificationContext{
		ResultID:   resultID,
		GuestEmail: "stranger@example.com",
	})
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if resp.Analysis != "" {
		t.Fatal("stranger must not see the detailed analysis")
	}
	if resp.Category != "care" {
		t.Fatalf("free summary missing: %+v", resp)
	}

	// The owner gets the analysis.
	resp, err = svc.GetResult(context.Background(), &VerificationContext{
		ResultID: resultID,
		UserID:   &owner,
	})
	if err != nil {
		t.Fatalf("get result as owner: %v", err)
	}
	if resp.Analysis != "full analysis" {
		t.Fatalf("owner should see the analysis, got %q", resp.Analysis)
	}
}

func TestGetResultUnpurchasedHidesAnalysisFromOwner(t *testing.T) {
	results := newFakeResultRepo()
	svc, _ := newQuizService(results)

	owner := uuid.New()
	resultID := uuid.New()
	results.add(&model.QuizResult{
		ID:       resultID,
		UserID:   &owner,
		Category: "care",
		Analysis: "full analysis",
	})

	resp, err := svc.GetResult(context.Background(), &VerificationContext{
		ResultID: resultID,
		UserID:   &owner,
	})
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if resp.Analysis != "" {
		t.Fatal("analysis must stay locked until purchase")
	}
}
