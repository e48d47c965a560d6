package topology

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ConfigError is returned when an operation cannot proceed given its inputs:
// eg an inconsistent StorageNode pool, a missing primary zone, an invalid
// replication factor, or a relocation which would weaken durability. The
// operation is aborted and none of its inputs are modified.
type ConfigError struct {
	Context []string
	Err     error
}

// Error implements the error interface.
func (ce *ConfigError) Error() string {
	if len(ce.Context) != 0 {
		return strings.Join(ce.Context, ": ") + ": " + ce.Err.Error()
	}
	return ce.Err.Error()
}

// Unwrap returns the wrapped error.
func (ce *ConfigError) Unwrap() error { return ce.Err }

// NewConfigError parallels fmt.Errorf to return a new ConfigError instance.
func NewConfigError(format string, args ...interface{}) error {
	return &ConfigError{Err: fmt.Errorf(format, args...)}
}

// ExtendContext type-checks |err| to a *ConfigError, and if matched extends
// it with |context|. In all cases the value of |err| is returned.
func ExtendContext(err error, format string, args ...interface{}) error {
	if ce, ok := err.(*ConfigError); ok {
		ce.Context = append([]string{fmt.Sprintf(format, args...)}, ce.Context...)
	}
	return err
}

// IsConfigError returns true if |err| is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
