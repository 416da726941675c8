package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// IsFatal reports whether err must stop the owning task: configuration and signing failures.
func IsFatal(err error) bool {
	var ce *ConfigError
	var se *SigningError
	return errors.As(err, &ce) || errors.As(err, &se)
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "dial", "read", "subscribe")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ParseError is returned when a venue payload does not have the expected shape.
type ParseError struct {
	Venue VenueID
	What  string // "tick", "balance", "server time"
	Err   error
}

func (e *ParseError) Error() string {
	return string(e.Venue) + " " + e.What + " parse: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SigningError means an authenticated request could not be signed.
type SigningError struct {
	Venue VenueID
	Err   error
}

func (e *SigningError) Error() string {
	return string(e.Venue) + " signing: " + e.Err.Error()
}

func (e *SigningError) IsRetriable() bool {
	return false
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

var (
	// ErrUnknownMethod is returned for a REST method outside a venue's allow-lists.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrMissingCredentials is returned when a private call has no key or secret.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrUnknownVenue is returned for a venue id with no registered integration.
	ErrUnknownVenue = errors.New("unknown venue")

	// ErrCurrencyNotFound is returned when a balance response lacks the requested currency.
	ErrCurrencyNotFound = errors.New("currency not found")

	// ErrBufferEmpty is returned when a snapshot is requested before a buffer has data.
	ErrBufferEmpty = errors.New("buffer empty")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
