package workerpool

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures Submit/Go never leave a goroutine blocked on a semaphore
// acquire after the calling test has returned.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}
