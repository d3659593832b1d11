package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"morality-quiz-backend/internal/dto"
	"morality-quiz-backend/internal/model"
	"morality-quiz-backend/internal/repository"
	"morality-quiz-backend/internal/token"
)

// answerMaxValue is the top of the per-question agreement scale.
const answerMaxValue = 5

type QuizService interface {
	Submit(ctx context.Context, req *dto.SubmitQuizRequest, authedUserID *uuid.UUID) (*dto.SubmitQuizResponse, error)

	// GetResult returns the free summary for anyone holding the result id.
	// The detailed analysis is included only when the record is purchased
	// and the caller's fragments actually match the record's owner.
	GetResult(ctx context.Context, vc *VerificationContext) (*dto.QuizResultResponse, error)
}

type quizServiceImpl struct {
	results repository.QuizResultRepository
	tokens  *token.Manager
	now     func() time.Time
}

func NewQuizService(results repository.QuizResultRepository, tokens *token.Manager) QuizService {
	return &quizServiceImpl{
		results: results,
		tokens:  tokens,
		now:     time.Now,
	}
}

func (s *quizServiceImpl) Submit(ctx context.Context, req *dto.SubmitQuizRequest, authedUserID *uuid.UUID) (*dto.SubmitQuizResponse, error) {
	if len(req.Answers) == 0 {
		return nil, fmt.Errorf("no answers submitted")
	}

	scores, category := scoreAnswers(req.Answers)
	if category == "" {
		return nil, fmt.Errorf("answers carry no scorable categories")
	}

	now := s.now()
	result := &model.QuizResult{
		ID:             uuid.New(),
		UserID:         authedUserID,
		Category:       category,
		Scores:         toJSONMap(scores),
		Analysis:       buildAnalysis(category, scores),
		PurchaseStatus: model.PurchaseNone,
	}

	resp := &dto.SubmitQuizResponse{
		ResultID: result.ID.String(),
		Category: category,
	}

	if authedUserID == nil {
		guestToken, err := s.tokens.SignGuest(result.ID, now)
		if err != nil {
			return nil, fmt.Errorf("mint guest token: %w", err)
		}
		result.GuestEmail = req.GuestEmail
		result.GuestTokenID = guestToken.TokenID
		result.GuestTokenExpiresAt = &guestToken.ExpiresAt
		resp.GuestToken = guestToken.Token
	}

	if err := s.results.Create(ctx, result); err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}

	return resp, nil
}

func (s *quizServiceImpl) GetResult(ctx context.Context, vc *VerificationContext) (*dto.QuizResultResponse, error) {
	// An ownership-scoped read both authorizes the analysis and never
	// matches someone else's record.
	owned, err := s.findOwned(ctx, vc)
	if err != nil {
		return nil, err
	}

	result := owned
	if result == nil {
		result, err = s.results.FindByID(ctx, vc.ResultID)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, fmt.Errorf("result %s not found", vc.ResultID)
		}
	}

	resp := &dto.QuizResultResponse{
		ResultID:       result.ID.String(),
		Category:       result.Category,
		Scores:         fromJSONMap(result.Scores),
		IsPurchased:    result.IsPurchased,
		PurchaseStatus: string(result.PurchaseStatus),
	}
	if result.AccessMethod != nil {
		resp.AccessMethod = string(*result.AccessMethod)
	}
	if owned != nil && result.IsPurchased {
		resp.Analysis = result.Analysis
	}

	return resp, nil
}

func (s *quizServiceImpl) findOwned(ctx context.Context, vc *VerificationContext) (*model.QuizResult, error) {
	for _, fragment := range vc.Fragments() {
		var (
			result *model.QuizResult
			err    error
		)

		switch fragment.Kind {
		case FragmentUserID:
			result, err = s.results.FindForUser(ctx, vc.ResultID, fragment.UserID)
		case FragmentGuestToken:
			result, err = s.results.FindForGuestToken(ctx, vc.ResultID, fragment.GuestTokenID, s.now())
		case FragmentGuestEmail:
			result, err = s.results.FindForGuestEmail(ctx, vc.ResultID, fragment.GuestEmail)
		default:
			continue
		}

		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}

	return nil, nil
}

// scoreAnswers normalizes each category to 0-100 and picks the dominant one,
// breaking ties lexicographically so equal inputs always score identically.
func scoreAnswers(answers []dto.Answer) (map[string]float64, string) {
	sums := map[string]int{}
	counts := map[string]int{}
	for _, answer := range answers {
		category := strings.ToLower(strings.TrimSpace(answer.Category))
		if category == "" {
			continue
		}
		value := answer.Value
		if value < 0 {
			value = 0
		}
		if value > answerMaxValue {
			value = answerMaxValue
		}
		sums[category] += value
		counts[category]++
	}

	scores := make(map[string]float64, len(sums))
	for category, sum := range sums {
		scores[category] = float64(sum) / float64(counts[category]*answerMaxValue) * 100
	}

	categories := make([]string, 0, len(scores))
	for category := range scores {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	dominant := ""
	best := -1.0
	for _, category := range categories {
		if scores[category] > best {
			best = scores[category]
			dominant = category
		}
	}

	return scores, dominant
}

func buildAnalysis(category string, scores map[string]float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your strongest moral foundation is %s (%.0f/100).\n\n", category, scores[category])

	categories := make([]string, 0, len(scores))
	for c := range scores {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, c := range categories {
		fmt.Fprintf(&b, "%s: %.0f/100\n", c, scores[c])
	}

	return b.String()
}

func toJSONMap(scores map[string]float64) datatypes.JSONMap {
	m := datatypes.JSONMap{}
	for category, score := range scores {
		m[category] = score
	}
	return m
}

func fromJSONMap(m datatypes.JSONMap) map[string]float64 {
	scores := make(map[string]float64, len(m))
	for category, value := range m {
		if f, ok := value.(float64); ok {
			scores[category] = f
		}
	}
	return scores
}
