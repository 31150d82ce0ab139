package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("empty registry should be healthy")
	}
	if len(statuses) != 0 {
		t.Fatalf("expected 0 statuses, got %d", len(statuses))
	}
}

func TestRegistryAllHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(_ context.Context) Status {
		return Status{Name: "database", Healthy: true}
	})
	r.Register("cache", func(_ context.Context) Status {
		return Status{Healthy: true, Detail: "memory"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("all-healthy registry should report healthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[1].Name != "cache" {
		t.Errorf("expected registered name to fill in, got %q", statuses[1].Name)
	}
	if statuses[0].Latency == "" {
		t.Error("expected latency to be recorded")
	}
}

func TestRegistryOneUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("database", PingFunc("database", func(context.Context) error { return nil }))
	r.Register("cache", PingFunc("cache", func(context.Context) error {
		return errors.New("connection refused")
	}))

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Fatal("registry with unhealthy checker should report unhealthy")
	}
	if statuses[1].Detail != "connection refused" {
		t.Fatalf("expected detail 'connection refused', got %q", statuses[1].Detail)
	}
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestPingChecker(t *testing.T) {
	st := PingChecker("database", fakePinger{})(context.Background())
	if !st.Healthy || st.Name != "database" {
		t.Errorf("unexpected status %+v", st)
	}

	st = PingChecker("database", fakePinger{err: errors.New("down")})(context.Background())
	if st.Healthy || st.Detail != "down" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestRegistryAppliesDefaultTimeout(t *testing.T) {
	r := NewRegistry()
	r.Register("slow", func(ctx context.Context) Status {
		if _, ok := ctx.Deadline(); !ok {
			return Status{Healthy: false, Detail: "no deadline"}
		}
		select {
		case <-ctx.Done():
			return Status{Healthy: false, Detail: ctx.Err().Error()}
		case <-time.After(10 * time.Millisecond):
			return Status{Healthy: true}
		}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatalf("expected healthy, got %+v", statuses)
	}
}

func TestRegistryConcurrentRegisterAndCheck(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register("checker", func(_ context.Context) Status {
				return Status{Name: "checker", Healthy: true}
			})
		}()
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.CheckAll(context.Background())
		}()
	}

	wg.Wait()
}
