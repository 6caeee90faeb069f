package profile

import "errors"

// ErrConfig matches any *ConfigError.
// Use errors.Is(err, ErrConfig) to check for this error.
var ErrConfig = &ConfigError{}

// ErrScanConsumed is yielded when a Scan is ranged over a second time.
var ErrScanConsumed = errors.New("scan already consumed")

// ConfigError reports an invalid or missing configuration value.
// Field uses the dotted document path, e.g. "mapping.temperatures".
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += " " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// WithFieldPrefix qualifies the field of a *ConfigError in err with its
// document section, e.g. "temperatures" becomes "mapping.temperatures".
// Other errors are returned unchanged.
func WithFieldPrefix(section string, err error) error {
	var ce *ConfigError
	if !errors.As(err, &ce) {
		return err
	}
	cp := *ce
	cp.Field = section + "." + ce.Field
	return &cp
}
