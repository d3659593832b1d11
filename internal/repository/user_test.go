package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"morality-quiz-backend/internal/model"
)

func TestGrantCreditsOncePerSession(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	userID := uuid.New()
	if err := repo.Create(ctx, &model.User{
		ID:           userID,
		Email:        "buyer@example.com",
		PasswordHash: "x",
		Role:         model.RoleUser,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	granted, err := repo.GrantCredits(ctx, userID, "cs_grant", 5)
	if err != nil {
		t.Fatalf("first grant: %v", err)
	}
	if !granted {
		t.Fatal("first grant should apply")
	}

	// Same session again: the ledger row absorbs it.
	granted, err = repo.GrantCredits(ctx, userID, "cs_grant", 5)
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if granted {
		t.Fatal("second grant for the same session must be a no-op")
	}

	user, err := repo.FindByID(ctx, userID)
	if err != nil {
		t.Fatalf("read user: %v", err)
	}
	if user.Credits != 5 {
		t.Fatalf("credits = %d, want 5", user.Credits)
	}

	// A different session grants independently.
	granted, err = repo.GrantCredits(ctx, userID, "cs_grant_2", 5)
	if err != nil {
		t.Fatalf("third grant: %v", err)
	}
	if !granted {
		t.Fatal("new session should grant")
	}

	user, _ = repo.FindByID(ctx, userID)
	if user.Credits != 10 {
		t.Fatalf("credits = %d, want 10", user.Credits)
	}
}

func TestConsumeCreditStopsAtZero(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	userID := uuid.New()
	if err := repo.Create(ctx, &model.User{
		ID:           userID,
		Email:        "buyer@example.com",
		PasswordHash: "x",
		Role:         model.RoleUser,
		Credits:      1,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	spent, err := repo.ConsumeCredit(ctx, userID)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !spent {
		t.Fatal("credit should be spent")
	}

	spent, err = repo.ConsumeCredit(ctx, userID)
	if err != nil {
		t.Fatalf("consume at zero: %v", err)
	}
	if spent {
		t.Fatal("consume must refuse at zero balance")
	}
}
