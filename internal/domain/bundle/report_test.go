package bundle

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReportAddf verifies recording, ordering and lookup of warnings.
func TestReportAddf(t *testing.T) {
	t.Parallel()

	r := NewReport()
	require.Zero(t, r.Len())
	require.False(t, r.Has(WarnCollision))

	r.Addf(WarnHiddenMissing, "module %q not found", "app.plugin")
	r.Addf(WarnCollision, "resource %q overwrites binary module", "data/codec.so")

	require.Equal(t, 2, r.Len())
	require.True(t, r.Has(WarnHiddenMissing))
	require.True(t, r.Has(WarnCollision))
	require.False(t, r.Has(WarnIconInvalid))

	warnings := r.Warnings()
	require.Len(t, warnings, 2)
	require.Equal(t, WarnHiddenMissing, warnings[0].Code)
	require.Equal(t, `hidden-missing: module "app.plugin" not found`, warnings[0].String())
}

// TestReportWarningsCopy verifies that callers cannot mutate internal state.
func TestReportWarningsCopy(t *testing.T) {
	t.Parallel()

	r := NewReport()
	r.Addf(WarnUnresolved, "import %q matched no search path", "missing_pkg")

	warnings := r.Warnings()
	warnings[0].Message = "mutated"

	require.Equal(t, `import "missing_pkg" matched no search path`, r.Warnings()[0].Message)
}

// TestReportConcurrentAdd verifies the collector is safe for parallel stages.
func TestReportConcurrentAdd(t *testing.T) {
	t.Parallel()

	const workers = 16

	r := NewReport()

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()
			r.Addf(WarnUnresolved, "worker %d", i)
		}()
	}

	wg.Wait()

	require.Equal(t, workers, r.Len())

	seen := make(map[string]bool, workers)
	for _, w := range r.Warnings() {
		seen[w.Message] = true
	}

	for i := range workers {
		require.True(t, seen[fmt.Sprintf("worker %d", i)])
	}
}
