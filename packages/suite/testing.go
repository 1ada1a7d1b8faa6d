package suite

import (
	"context"
	"testing"

	"github.com/abdul-hamid-achik/hitchain/packages/http"
)

// ForTest creates a suite that is closed when t finishes. Cleanup failures
// are reported as test errors.
func ForTest(t testing.TB, transport http.Transport, opts ...Option) *Suite {
	t.Helper()
	s := New(t.Name(), transport, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
		defer cancel()
		if err := s.Close(ctx); err != nil {
			t.Errorf("suite cleanup: %v", err)
		}
	})
	return s
}
