package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCategory represents the kind of failure met while loading data or simulating
type ErrorCategory string

const (
	// Recoverable: logged, the affected asset or bar is skipped and the run continues
	ErrorCategoryDataUnavailable   ErrorCategory = "DATA_UNAVAILABLE"
	ErrorCategoryIndicatorNotReady ErrorCategory = "INDICATOR_NOT_READY"
	ErrorCategoryInsufficientFunds ErrorCategory = "INSUFFICIENT_FUNDS"
	ErrorCategoryExecution         ErrorCategory = "EXECUTION"

	// Rejects a single asset's series at load time
	ErrorCategoryDataOrdering ErrorCategory = "DATA_ORDERING"
	ErrorCategoryInvalidData  ErrorCategory = "INVALID_DATA"

	// Stops the command before a run starts
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
	ErrorCategoryReporting     ErrorCategory = "REPORTING"
)

// Sentinels for errors.Is. Matching is done on the category only.
var (
	ErrDataUnavailable   = &BacktestError{Category: ErrorCategoryDataUnavailable}
	ErrIndicatorNotReady = &BacktestError{Category: ErrorCategoryIndicatorNotReady}
	ErrInsufficientFunds = &BacktestError{Category: ErrorCategoryInsufficientFunds}
	ErrExecution         = &BacktestError{Category: ErrorCategoryExecution}
	ErrDataOrdering      = &BacktestError{Category: ErrorCategoryDataOrdering}
	ErrInvalidData       = &BacktestError{Category: ErrorCategoryInvalidData}
	ErrConfig            = &BacktestError{Category: ErrorCategoryConfiguration}
	ErrReporting         = &BacktestError{Category: ErrorCategoryReporting}
)

// BacktestError represents a categorized error with context
type BacktestError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Symbol     string
	Message    string
	Underlying error
}

// Error implements the error interface
func (e *BacktestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s", e.Category)
	if e.Component != "" {
		fmt.Fprintf(&b, ":%s", e.Component)
	}
	b.WriteString("]")
	if e.Operation != "" {
		fmt.Fprintf(&b, " %s", e.Operation)
	}
	if e.Symbol != "" {
		fmt.Fprintf(&b, " %s", e.Symbol)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, ": %v", e.Underlying)
	}
	return b.String()
}

// Unwrap returns the underlying error for error unwrapping
func (e *BacktestError) Unwrap() error {
	return e.Underlying
}

// Is reports whether target is a BacktestError of the same category
func (e *BacktestError) Is(target error) bool {
	t, ok := target.(*BacktestError)
	if !ok {
		return false
	}
	return t.Category == e.Category
}

// WithSymbol attaches the asset the error refers to
func (e *BacktestError) WithSymbol(symbol string) *BacktestError {
	e.Symbol = symbol
	return e
}

// New creates a new categorized error
func New(category ErrorCategory, component, operation, message string) *BacktestError {
	return &BacktestError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// Newf is New with a formatted message
func Newf(category ErrorCategory, component, operation, format string, args ...interface{}) *BacktestError {
	return New(category, component, operation, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with category context
func Wrap(err error, category ErrorCategory, component, operation string) *BacktestError {
	if err == nil {
		return nil
	}
	return &BacktestError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Underlying: err,
	}
}

// CategoryOf returns the category of the first BacktestError in err's chain
func CategoryOf(err error) (ErrorCategory, bool) {
	var be *BacktestError
	if stderrors.As(err, &be) {
		return be.Category, true
	}
	return "", false
}

// IsRecoverable reports whether the run may continue after err
func IsRecoverable(err error) bool {
	category, ok := CategoryOf(err)
	if !ok {
		return false
	}
	switch category {
	case ErrorCategoryDataUnavailable, ErrorCategoryIndicatorNotReady,
		ErrorCategoryInsufficientFunds, ErrorCategoryExecution,
		ErrorCategoryDataOrdering, ErrorCategoryInvalidData:
		return true
	default:
		return false
	}
}

// RecoveryAction describes what the driver does with an error
type RecoveryAction string

const (
	RecoveryActionSkipBar   RecoveryAction = "SKIP_BAR"
	RecoveryActionDropAsset RecoveryAction = "DROP_ASSET"
	RecoveryActionStop      RecoveryAction = "STOP"
)

// GetRecoveryAction suggests a recovery action based on error category
func GetRecoveryAction(err error) RecoveryAction {
	category, _ := CategoryOf(err)
	switch category {
	case ErrorCategoryIndicatorNotReady, ErrorCategoryInsufficientFunds, ErrorCategoryExecution:
		return RecoveryActionSkipBar
	case ErrorCategoryDataUnavailable, ErrorCategoryDataOrdering, ErrorCategoryInvalidData:
		return RecoveryActionDropAsset
	default:
		return RecoveryActionStop
	}
}

// ErrorStats tracks error counts by category
type ErrorStats struct {
	TotalErrors      int
	ErrorsByCategory map[ErrorCategory]int
	RecentErrors     []error
	MaxRecentErrors  int
}

// NewErrorStats creates a new error statistics tracker
func NewErrorStats(maxRecentErrors int) *ErrorStats {
	return &ErrorStats{
		ErrorsByCategory: make(map[ErrorCategory]int),
		RecentErrors:     make([]error, 0, maxRecentErrors),
		MaxRecentErrors:  maxRecentErrors,
	}
}

// RecordError records an error in the statistics
func (es *ErrorStats) RecordError(err error) {
	if err == nil {
		return
	}
	es.TotalErrors++
	category, ok := CategoryOf(err)
	if !ok {
		category = "UNCATEGORIZED"
	}
	es.ErrorsByCategory[category]++

	if es.MaxRecentErrors <= 0 {
		return
	}
	es.RecentErrors = append(es.RecentErrors, err)
	if len(es.RecentErrors) > es.MaxRecentErrors {
		es.RecentErrors = es.RecentErrors[1:]
	}
}

// Count returns how many errors of a category were recorded
func (es *ErrorStats) Count(category ErrorCategory) int {
	return es.ErrorsByCategory[category]
}
