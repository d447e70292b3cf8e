package testutil

import (
	"os"
	"strings"
	"time"
)

// TestingTB is an interface that covers both *testing.T and *testing.B.
type TestingTB interface {
	Helper()
	Skip(args ...interface{})
	Skipf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	Logf(format string, args ...interface{})
}

// cleanupTB is satisfied by *testing.T and *testing.B.
type cleanupTB interface {
	Cleanup(func())
}

// TestTime returns a fixed time for testing.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// FixedTimeFunc returns a clock that always reports t.
func FixedTimeFunc(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// registerCleanup runs fn when the test ends, or immediately if tb cannot defer it.
func registerCleanup(t TestingTB, fn func()) {
	if tc, ok := any(t).(cleanupTB); ok {
		tc.Cleanup(fn)
		return
	}
	t.Logf("testutil: no Cleanup support; releasing resources now")
	fn()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envBool parses common truthy values from env vars.
func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

// skipOrFail skips when infrastructure is optional and fails when TEST_REQUIRE_<name> or TEST_REQUIRE_INFRA is set.
func skipOrFail(t TestingTB, name string, err error) {
	t.Helper()
	if envBool("TEST_REQUIRE_"+name) || envBool("TEST_REQUIRE_INFRA") {
		t.Fatalf("%s not available for testing: %v", strings.ToLower(name), err)
	}
	t.Skipf("%s not available for testing: %v", strings.ToLower(name), err)
}
