package testutil

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCandidates are tried in order when REDIS_ADDR is unset: the CI service name,
// a plain local install and the compose test profile.
var redisCandidates = []string{"redis:6379", "localhost:6379", "localhost:56379"} //nolint:gochecknoglobals // read-only

// SetupTestRedis returns a client on the first reachable Redis, or skips the test.
// TEST_REDIS_DB selects the logical database (default 1) so tests stay clear of DB 0.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addrs := redisCandidates
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		addrs = []string{addr}
	}
	dbIndex := 1
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			dbIndex = i
		}
	}

	var errs []error
	for _, addr := range addrs {
		client := redis.NewClient(&redis.Options{Addr: addr, DB: dbIndex})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err == nil {
			t.Logf("using Redis %s db=%d", addr, dbIndex)
			return client
		}
		errs = append(errs, err)
		_ = client.Close()
	}
	skipOrFail(t, "REDIS", errors.Join(errs...))
	return nil
}
