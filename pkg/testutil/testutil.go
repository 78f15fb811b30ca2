// Package testutil holds helpers shared by connector tests, chiefly the
// ConnectorSuite every connector runs.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"
)

// Context returns a context that ends after 30 seconds or when the test
// finishes, whichever comes first.
func Context(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// IntegrationEnv returns the value of the environment variable naming the
// external system an integration test needs. The test is skipped in short
// mode or when the variable is unset.
func IntegrationEnv(t testing.TB, key string) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	v := os.Getenv(key)
	if v == "" {
		t.Skipf("Skipping integration test: %s is not set", key)
	}
	return v
}
