package runner

import (
	"errors"
	"fmt"

	"github.com/torosent/barrage/internal/pool"
)

var (
	// ErrInvalidConfig matches every *ConfigError.
	ErrInvalidConfig = errors.New("invalid campaign configuration")
	// ErrAlreadyRun is returned when a campaign is run a second time.
	ErrAlreadyRun = errors.New("campaign already run")
	// ErrCanceled is returned when a campaign's context ends before all
	// requests were dispatched.
	ErrCanceled = pool.ErrCanceled
)

// ConfigError rejects a campaign before any request is sent.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// InvariantError reports that a completed campaign did not account for
// every dispatched request. It always indicates a bug.
type InvariantError struct {
	Campaign string
	Expected int64
	Recorded int64
	Detail   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("campaign %s: internal invariant violated: expected %d outcomes, recorded %d (%s)",
		e.Campaign, e.Expected, e.Recorded, e.Detail)
}
