package schedule

import "fmt"

// ConfigurationError reports an invalid or unknown timezone identifier. It is
// fatal to the request: the engine never falls back to UTC silently, since a
// wrong reference frame miscalculates every slot.
type ConfigurationError struct {
	Zone string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unknown timezone %q", e.Zone)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ValidationError reports a malformed time block or plan window, rejected at
// the boundary before any aggregation runs.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// InputError reports a caller bug, e.g. aggregation requested with zero
// participants. Distinct from a valid empty result.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return e.Msg
}
