package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/wesleyorama2/udpstress/internal/rate"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e *ValidationErrors) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		out[i] = err
	}
	return out
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// AddErr adds an error wrapping err to the collection.
func (e *ValidationErrors) AddErr(field string, err error) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: err.Error(), Err: err})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks the sender configuration. Defaults should be applied
// first.
//
// Returns nil if valid, or a ValidationErrors containing all validation
// errors. A timing problem is wrapped as a *ConfigError.
func (c *SenderConfig) Validate() error {
	errs := &ValidationErrors{}

	validateAddr("url", c.URL, true, errs)

	if spec, err := c.Timing(); err != nil {
		errs.AddErr("timing", err)
	} else if _, err := rate.Resolve(spec); err != nil {
		field := "frequency"
		if _, ok := spec.(rate.Delay); ok {
			field = "delay"
		}
		errs.AddErr(field, err)
	}

	if c.TotalAmount == 0 {
		errs.Add("totalAmount", "must be greater than 0")
	}

	if c.PayloadSize < 0 || c.PayloadSize > MaxPayloadSize {
		errs.Add("payloadSize", fmt.Sprintf("must be between 0 and %d", MaxPayloadSize))
	}

	if c.SamplesPath != "" && c.Samples == "" {
		errs.Add("samplesPath", "requires a samples file")
	}

	validateInterval("reportInterval", c.ReportInterval, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Validate checks the collector configuration. Defaults should be applied
// first.
func (c *CollectorConfig) Validate() error {
	errs := &ValidationErrors{}

	validateAddr("listen", c.Listen, false, errs)
	validateInterval("reportInterval", c.ReportInterval, errs)

	if c.Workers < 0 {
		errs.Add("workers", "must not be negative")
	}
	if c.QueueSize < 0 {
		errs.Add("queueSize", "must not be negative")
	}
	if c.Cost != nil && *c.Cost < 0 {
		errs.Add("cost", "must not be negative")
	}
	if c.BufferSize < 1 || c.BufferSize > DefaultBufferSize {
		errs.Add("bufferSize", fmt.Sprintf("must be between 1 and %d", DefaultBufferSize))
	}
	if c.DrainTimeout <= 0 {
		errs.Add("drainTimeout", "must be positive")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// validateAddr checks a host:port pair. The host may be empty unless
// hostRequired is set.
func validateAddr(field, addr string, hostRequired bool, errs *ValidationErrors) {
	if addr == "" {
		errs.Add(field, "is required")
		return
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		errs.Add(field, fmt.Sprintf("must be host:port: %v", err))
		return
	}
	if hostRequired && host == "" {
		errs.Add(field, "host is required")
	}

	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		if _, lookupErr := net.LookupPort("udp", port); lookupErr != nil {
			errs.Add(field, fmt.Sprintf("invalid port %q", port))
		}
		return
	}
	if hostRequired && p == 0 {
		errs.Add(field, "port must not be 0")
	}
}

func validateInterval(field string, d Duration, errs *ValidationErrors) {
	if d <= 0 {
		errs.Add(field, "must be positive")
		return
	}
	if d.Std() < time.Millisecond {
		errs.Add(field, "must be at least 1ms")
	}
}

// IsTimingError reports whether err carries a *ConfigError.
func IsTimingError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
