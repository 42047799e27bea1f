package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validator collects validation errors so they can be reported together.
type Validator struct {
	errors []ValidationError
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{}
}

// AddError records a validation error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any error was recorded.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns the recorded errors in order.
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Err returns nil when the configuration is valid, or one error listing
// every problem. Each ValidationError stays reachable through errors.As.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	errs := make([]error, 0, len(v.errors))
	for _, e := range v.errors {
		errs = append(errs, e)
	}
	return fmt.Errorf("configuration validation failed with %d error(s): %w", len(v.errors), errors.Join(errs...))
}

// ValidateRequired checks that value is not blank.
func (v *Validator) ValidateRequired(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "required value not set")
	}
}

// ValidatePort accepts "port", ":port" and "host:port".
func (v *Validator) ValidatePort(field, value string) {
	if value == "" {
		v.AddError(field, "required value not set")
		return
	}

	portStr := value
	if i := strings.LastIndex(value, ":"); i >= 0 {
		portStr = value[i+1:]
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		v.AddError(field, "port must be a number")
		return
	}
	if port < 1 || port > 65535 {
		v.AddError(field, "port must be between 1 and 65535")
	}
}

// ValidateEnum checks that value is one of allowed.
func (v *Validator) ValidateEnum(field, value string, allowed []string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// ValidateNonNegative checks that n is zero or greater.
func (v *Validator) ValidateNonNegative(field string, n int64) {
	if n < 0 {
		v.AddError(field, "must not be negative")
	}
}
