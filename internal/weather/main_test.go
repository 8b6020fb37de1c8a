package weather

import (
	"testing"

	"go.uber.org/goleak"
)

// The lookup path must not leave goroutines behind; background work belongs to
// the process entry point.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
