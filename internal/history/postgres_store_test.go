//go:build integration

package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loticredit/loticredit/internal/pagination"
	"github.com/loticredit/loticredit/internal/score"
	"github.com/loticredit/loticredit/internal/testutil"
)

func TestPostgresStore_CreateLatestList(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	if _, err := store.Latest(ctx, "c1"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("Expected ErrSnapshotNotFound, got %v", err)
	}

	for i, id := range []string{"snap_a", "snap_b", "snap_c"} {
		err := store.Create(ctx, &Snapshot{
			ID:         id,
			ConsumerID: "c1",
			Factors:    score.Factors{PaymentHistoryRatio: 0.95, RecentInquiries: i},
			Score:      700 + i,
			Rating:     score.RatingGood,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	latest, err := store.Latest(ctx, "c1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.ID != "snap_c" || latest.Factors.RecentInquiries != 2 || latest.Rating != score.RatingGood {
		t.Errorf("Unexpected latest: %+v", latest)
	}

	page, err := store.List(ctx, "c1", 2, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != "snap_c" || page[1].ID != "snap_b" {
		t.Fatalf("Unexpected first page: %+v", page)
	}

	rest, err := store.List(ctx, "c1", 2, &pagination.Cursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != "snap_a" {
		t.Errorf("Unexpected second page: %+v", rest)
	}
}

func TestPostgresStore_Migrate_Idempotent(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
}
