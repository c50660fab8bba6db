package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeSessionInit represents a browser that could not be started
	ErrorTypeSessionInit ErrorType = "session_init"
	// ErrorTypeNavigationTimeout represents a bounded wait that expired
	ErrorTypeNavigationTimeout ErrorType = "navigation_timeout"
	// ErrorTypeStaleElement represents an element invalidated by a re-render
	ErrorTypeStaleElement ErrorType = "stale_element"
	// ErrorTypeTabNotFound represents a missing "latest" tab on the listing page
	ErrorTypeTabNotFound ErrorType = "tab_not_found"
	// ErrorTypeExtraction represents a detail page whose content could not be read
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML/JSON parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// CrawlerError represents a crawler-specific error
type CrawlerError struct {
	Type     ErrorType
	Provider string
	Message  string
	Err      error
	Time     time.Time
}

// Error implements the error interface
func (e *CrawlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Provider, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlerError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *CrawlerError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeStaleElement, ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// IsType reports whether err wraps a CrawlerError of the given type
func IsType(err error, errType ErrorType) bool {
	var ce *CrawlerError
	if !stderrors.As(err, &ce) {
		return false
	}
	return ce.Type == errType
}

// IsRetryable reports whether err wraps a retryable CrawlerError
func IsRetryable(err error) bool {
	var ce *CrawlerError
	if !stderrors.As(err, &ce) {
		return false
	}
	return ce.IsRetryable()
}

// New creates a new CrawlerError
func New(errType ErrorType, provider, message string, err error) *CrawlerError {
	return &CrawlerError{
		Type:     errType,
		Provider: provider,
		Message:  message,
		Err:      err,
		Time:     time.Now(),
	}
}

// NewSessionInit creates a new browser start-up error
func NewSessionInit(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeSessionInit, provider, message, err)
}

// NewNavigationTimeout creates a new navigation timeout error
func NewNavigationTimeout(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeNavigationTimeout, provider, message, err)
}

// NewStaleElement creates a new stale element error
func NewStaleElement(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeStaleElement, provider, message, err)
}

// NewTabNotFound creates a new missing tab error
func NewTabNotFound(provider, label string) *CrawlerError {
	return New(ErrorTypeTabNotFound, provider, fmt.Sprintf("tab %q not found", label), nil)
}

// NewExtraction creates a new extraction error
func NewExtraction(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeExtraction, provider, message, err)
}

// NewNetwork creates a new network error
func NewNetwork(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeNetwork, provider, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeParsing, provider, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(provider string, duration time.Duration) *CrawlerError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, provider, message, nil)
}

// NewCache creates a new cache error
func NewCache(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeCache, provider, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(provider, message string, err error) *CrawlerError {
	return New(ErrorTypePublisher, provider, message, err)
}

// NewValidation creates a new validation error
func NewValidation(provider, message string) *CrawlerError {
	return New(ErrorTypeValidation, provider, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlerError {
	return New(ErrorTypeConfiguration, "", message, err)
}
