package config

import "errors"

// ConfigErrorKind classifies a ConfigError.
type ConfigErrorKind int

const (
	// MissingTiming means neither a delay nor a frequency was given.
	MissingTiming ConfigErrorKind = iota + 1

	// ConflictingTiming means both a delay and a frequency were given.
	ConflictingTiming
)

// Sentinels matched by errors.Is against a *ConfigError of the same kind.
var (
	ErrMissingTiming     = errors.New("either a delay or a frequency is required")
	ErrConflictingTiming = errors.New("only one of delay and frequency may be given")
)

// ConfigError reports an inconsistent rate configuration.
type ConfigError struct {
	Kind ConfigErrorKind
}

func (e *ConfigError) Error() string {
	return e.Unwrap().Error()
}

// Unwrap returns the sentinel for e.Kind.
func (e *ConfigError) Unwrap() error {
	switch e.Kind {
	case MissingTiming:
		return ErrMissingTiming
	case ConflictingTiming:
		return ErrConflictingTiming
	default:
		return errors.New("invalid timing configuration")
	}
}
