package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/loticredit/loticredit/internal/cache"
	"github.com/loticredit/loticredit/internal/pagination"
	"github.com/loticredit/loticredit/internal/score"
)

var fixture = score.Factors{
	PaymentHistoryRatio: 0.95,
	UtilizationRatio:    0.2,
	HistoryLengthYears:  5,
	CreditMixScore:      0.7,
	RecentInquiries:     1,
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishScoreUpdated(consumerID string, data any) {
	p.mu.Lock()
	p.events = append(p.events, consumerID)
	p.mu.Unlock()
}

// countingStore counts Latest calls to observe cache hits.
type countingStore struct {
	*MemoryStore
	latestCalls int
}

func (c *countingStore) Latest(ctx context.Context, consumerID string) (*Snapshot, error) {
	c.latestCalls++
	return c.MemoryStore.Latest(ctx, consumerID)
}

type failingStore struct{ *MemoryStore }

func (failingStore) Create(context.Context, *Snapshot) error { return errors.New("disk full") }

func newTestService(store Store) *Service {
	svc := NewService(store, score.NewEngine(score.DefaultConfig()), slog.New(slog.NewTextHandler(io.Discard, nil)))
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Hour)
		return clock
	}
	return svc
}

func TestService_Record(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestService(NewMemoryStore()).WithEvents(pub)

	snap, err := svc.Record(context.Background(), "consumer-1", fixture)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if snap.Score != 739 || snap.Rating != score.RatingGood {
		t.Errorf("Expected 739/good, got %d/%s", snap.Score, snap.Rating)
	}
	if snap.ID == "" || snap.CreatedAt.IsZero() {
		t.Error("Expected ID and timestamp to be set")
	}
	if len(pub.events) != 1 || pub.events[0] != "consumer-1" {
		t.Errorf("Expected one score_updated for consumer-1, got %v", pub.events)
	}

	latest, err := svc.Latest(context.Background(), "consumer-1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.ID != snap.ID {
		t.Errorf("Expected latest %s, got %s", snap.ID, latest.ID)
	}
}

func TestService_Record_InvalidConsumer(t *testing.T) {
	svc := newTestService(NewMemoryStore())

	_, err := svc.Record(context.Background(), "bad id!", fixture)
	if !errors.Is(err, ErrInvalidConsumer) {
		t.Errorf("Expected ErrInvalidConsumer, got %v", err)
	}
}

func TestService_Record_RejectsNonFinite(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store)

	f := fixture
	f.UtilizationRatio = math.NaN()
	_, err := svc.Record(context.Background(), "consumer-1", f)
	if !errors.Is(err, score.ErrNonFiniteFactor) {
		t.Fatalf("Expected ErrNonFiniteFactor, got %v", err)
	}
	if _, err := store.Latest(context.Background(), "consumer-1"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Error("Rejected factors must not be stored")
	}
}

func TestService_Record_StoreFailure(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestService(failingStore{NewMemoryStore()}).WithEvents(pub)

	if _, err := svc.Record(context.Background(), "consumer-1", fixture); err == nil {
		t.Fatal("Expected store error")
	}
	if len(pub.events) != 0 {
		t.Error("No event should be published when the write fails")
	}
}

func TestService_Latest_NotFound(t *testing.T) {
	svc := newTestService(NewMemoryStore())

	_, err := svc.Latest(context.Background(), "nobody")
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestService_Latest_ReadsThroughCache(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	svc := newTestService(store).WithCache(cache.NewMemoryCache(), time.Minute)
	ctx := context.Background()

	snap, err := svc.Record(ctx, "consumer-1", fixture)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := svc.Latest(ctx, "consumer-1")
		if err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if got.ID != snap.ID || got.Score != snap.Score {
			t.Errorf("Cached snapshot mismatch: %+v", got)
		}
	}
	if store.latestCalls != 0 {
		t.Errorf("Expected cache hits only, store called %d times", store.latestCalls)
	}
}

func TestService_Latest_PopulatesCacheOnMiss(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	c := cache.NewMemoryCache()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Record(ctx, "consumer-1", fixture); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	svc.WithCache(c, time.Minute)
	if _, err := svc.Latest(ctx, "consumer-1"); err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if _, err := svc.Latest(ctx, "consumer-1"); err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if store.latestCalls != 1 {
		t.Errorf("Expected one store read, got %d", store.latestCalls)
	}
}

func TestService_History_Pagination(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		f := fixture
		f.RecentInquiries = i
		snap, err := svc.Record(ctx, "consumer-1", f)
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		ids = append(ids, snap.ID)
	}

	var seen []string
	cursor := ""
	pages := 0
	for {
		page, err := svc.History(ctx, "consumer-1", 2, cursor)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		pages++
		for _, s := range page.Snapshots {
			seen = append(seen, s.ID)
		}
		if !page.HasMore {
			if page.NextCursor != "" {
				t.Error("Last page should not carry a cursor")
			}
			break
		}
		cursor = page.NextCursor
	}

	if pages != 3 {
		t.Errorf("Expected 3 pages, got %d", pages)
	}
	if len(seen) != 5 {
		t.Fatalf("Expected 5 snapshots, got %d", len(seen))
	}
	for i := range seen {
		if seen[i] != ids[len(ids)-1-i] {
			t.Errorf("Expected newest first at %d: want %s got %s", i, ids[len(ids)-1-i], seen[i])
		}
	}
}

func TestService_History_Empty(t *testing.T) {
	svc := newTestService(NewMemoryStore())

	page, err := svc.History(context.Background(), "nobody", 0, "")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if page.Snapshots == nil || len(page.Snapshots) != 0 || page.HasMore {
		t.Errorf("Expected empty page, got %+v", page)
	}
}

func TestService_History_InvalidCursor(t *testing.T) {
	svc := newTestService(NewMemoryStore())

	_, err := svc.History(context.Background(), "consumer-1", 10, "%%%")
	if !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("Expected ErrInvalidCursor, got %v", err)
	}
}

func TestService_Trend(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()

	inquiries := []int{5, 3, 1, 0}
	var scores []int
	for _, n := range inquiries {
		f := fixture
		f.RecentInquiries = n
		snap, err := svc.Record(ctx, "consumer-1", f)
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		scores = append(scores, snap.Score)
	}

	trend, err := svc.Trend(ctx, "consumer-1", 3)
	if err != nil {
		t.Fatalf("Trend failed: %v", err)
	}
	if len(trend.Points) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(trend.Points))
	}
	for i, p := range trend.Points {
		if p.Score != scores[i+1] {
			t.Errorf("Point %d: expected %d, got %d", i, scores[i+1], p.Score)
		}
	}
	if !trend.Points[0].At.Before(trend.Points[2].At) {
		t.Error("Points should be oldest first")
	}
	if trend.Delta != scores[3]-scores[1] {
		t.Errorf("Expected delta %d, got %d", scores[3]-scores[1], trend.Delta)
	}
	if trend.Delta <= 0 {
		t.Error("Fewer inquiries should raise the score")
	}
}

func TestService_Trend_NotFound(t *testing.T) {
	svc := newTestService(NewMemoryStore())

	_, err := svc.Trend(context.Background(), "nobody", 0)
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestMemoryStore_ListAfterCursor(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		_ = store.Create(ctx, &Snapshot{ID: id, ConsumerID: "c1", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	// Same timestamp as "b"; the ID breaks the tie.
	_ = store.Create(ctx, &Snapshot{ID: "b2", ConsumerID: "c1", CreatedAt: base.Add(time.Minute)})

	all, _ := store.List(ctx, "c1", 10, nil)
	got := ""
	for _, s := range all {
		got += s.ID + ","
	}
	if got != "c,b2,b,a," {
		t.Errorf("Unexpected order %s", got)
	}

	after, _ := store.List(ctx, "c1", 10, &pagination.Cursor{CreatedAt: base.Add(time.Minute), ID: "b2"})
	if len(after) != 2 || after[0].ID != "b" || after[1].ID != "a" {
		t.Errorf("Unexpected page after cursor: %v", after)
	}
}
