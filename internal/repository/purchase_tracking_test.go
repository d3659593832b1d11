package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"morality-quiz-backend/internal/model"
)

func TestMarkCompletedTransitionsOnce(t *testing.T) {
	repo := NewPurchaseTrackingRepository(newTestDB(t))
	ctx := context.Background()

	resultID := uuid.New()
	if err := repo.Create(ctx, &model.PurchaseTracking{
		ID:                uuid.New(),
		ResultID:          &resultID,
		CheckoutSessionID: "cs_1",
		Kind:              model.KindReport,
		AmountCents:       1900,
		Currency:          "usd",
		Status:            model.PurchaseInitiated,
	}); err != nil {
		t.Fatalf("create tracking: %v", err)
	}

	first := time.Now().Truncate(time.Second)
	transitioned, err := repo.MarkCompleted(ctx, "cs_1", first)
	if err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if !transitioned {
		t.Fatal("first delivery should transition")
	}

	transitioned, err = repo.MarkCompleted(ctx, "cs_1", first.Add(time.Hour))
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if transitioned {
		t.Fatal("redelivery must not transition again")
	}

	tracking, err := repo.FindCompletedBySessionID(ctx, "cs_1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if tracking == nil {
		t.Fatal("completed tracking not found")
	}
	if tracking.CompletedAt == nil || !tracking.CompletedAt.Equal(first) {
		t.Fatalf("completed at overwritten: %v", tracking.CompletedAt)
	}
}

func TestFindCompletedForResultIgnoresInitiated(t *testing.T) {
	repo := NewPurchaseTrackingRepository(newTestDB(t))
	ctx := context.Background()

	resultID := uuid.New()
	if err := repo.Create(ctx, &model.PurchaseTracking{
		ID:                uuid.New(),
		ResultID:          &resultID,
		CheckoutSessionID: "cs_2",
		Kind:              model.KindReport,
		AmountCents:       1900,
		Currency:          "usd",
		Status:            model.PurchaseInitiated,
	}); err != nil {
		t.Fatalf("create tracking: %v", err)
	}

	tracking, err := repo.FindCompletedForResult(ctx, resultID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if tracking != nil {
		t.Fatal("initiated tracking must not count as payment evidence")
	}
}
