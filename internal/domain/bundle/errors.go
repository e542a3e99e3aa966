package bundle

import (
	"errors"
	"fmt"
)

// The pipeline classifies every failure into one of three categories.
// Callers can tell problems in their manifest apart from problems in the
// build environment and from bugs in the pipeline itself.
var (
	// ErrConfiguration marks user-fixable problems: bad manifest values,
	// missing source files, unresolvable entry points.
	ErrConfiguration = errors.New("configuration error")
	// ErrAssembly marks environment problems while producing artifacts,
	// such as a missing launcher stub or an unwritable output tree.
	ErrAssembly = errors.New("assembly error")
	// ErrInternal marks invariant violations inside the pipeline itself.
	ErrInternal = errors.New("internal error")
)

// Configurationf wraps a formatted message as a configuration error.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Assemblyf wraps a formatted message as an assembly error.
func Assemblyf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAssembly, fmt.Sprintf(format, args...))
}

// Internalf wraps a formatted message as an internal error.
func Internalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}

// AsConfiguration tags an existing error as a configuration error,
// keeping its chain intact for errors.Is checks.
func AsConfiguration(err error) error {
	return fmt.Errorf("%w: %w", ErrConfiguration, err)
}

// AsAssembly tags an existing error as an assembly error.
func AsAssembly(err error) error {
	return fmt.Errorf("%w: %w", ErrAssembly, err)
}

// AsInternal tags an existing error as an internal error.
func AsInternal(err error) error {
	return fmt.Errorf("%w: %w", ErrInternal, err)
}
