package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const redisImage = "redis:7-alpine"

// RedisTest returns a Redis URL for integration tests plus a cleanup function.
//
//	url, cleanup := testutil.RedisTest(t)
//	defer cleanup()
//
// REDIS_URL is used when set, so tests must namespace their keys. Otherwise
// a disposable Redis container is started; the test is skipped when no
// container runtime is available.
func RedisTest(t *testing.T) (string, func()) {
	t.Helper()
	ctx := context.Background()

	if url := os.Getenv("REDIS_URL"); url != "" {
		return url, func() {}
	}

	ctr, err := testcontainers.Run(ctx, redisImage,
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp").WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Skipf("REDIS_URL not set and no container runtime: %v", err)
	}

	stop := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = testcontainers.TerminateContainer(ctr, testcontainers.StopContext(stopCtx))
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		stop()
		t.Fatalf("redistest: container host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "6379/tcp")
	if err != nil {
		stop()
		t.Fatalf("redistest: container port: %v", err)
	}
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port()), stop
}
