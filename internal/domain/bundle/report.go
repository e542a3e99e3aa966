package bundle

import (
	"fmt"
	"sync"
)

// WarningCode names a class of non-fatal build findings.
type WarningCode string

// Warning codes emitted by the pipeline stages.
const (
	// WarnHiddenRedundant flags a hidden import that discovery already found.
	WarnHiddenRedundant WarningCode = "hidden-redundant"
	// WarnHiddenMissing flags a hidden import that resolves nowhere.
	WarnHiddenMissing WarningCode = "hidden-missing"
	// WarnCollision flags a resource overwriting a collected binary module.
	WarnCollision WarningCode = "collision"
	// WarnIconInvalid flags an icon file that is not a recognized format.
	WarnIconInvalid WarningCode = "icon-invalid"
	// WarnVersionInfoInvalid flags a malformed version descriptor.
	WarnVersionInfoInvalid WarningCode = "version-info-invalid"
	// WarnTargetRunning flags an install target that appears to be running.
	WarnTargetRunning WarningCode = "target-running"
	// WarnUnresolved flags an import statement that matched no search path.
	WarnUnresolved WarningCode = "unresolved"
)

// Warning is one non-fatal finding surfaced to the user after the build.
type Warning struct {
	// Code classifies the finding.
	Code WarningCode
	// Message describes the finding in one line.
	Message string
}

// String renders the warning the way it appears in the build report.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}

// Report collects warnings across pipeline stages. Stages may append
// from concurrent workers, so the collector is safe for parallel use.
type Report struct {
	mu       sync.Mutex
	warnings []Warning
}

// NewReport returns an empty warning collector.
func NewReport() *Report {
	return &Report{}
}

// Addf records a warning with a formatted message.
func (r *Report) Addf(code WarningCode, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.warnings = append(r.warnings, Warning{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

// Warnings returns a copy of the recorded warnings in insertion order.
func (r *Report) Warnings() []Warning {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)

	return out
}

// Has reports whether at least one warning with the given code was recorded.
func (r *Report) Has(code WarningCode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, w := range r.warnings {
		if w.Code == code {
			return true
		}
	}

	return false
}

// Len returns the number of recorded warnings.
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.warnings)
}
