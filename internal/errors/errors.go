// Package errors provides custom error types for the finwave API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Tenant errors.
var (
	ErrTenantNotFound = &AppError{Code: "TENANT_NOT_FOUND", Message: "Tenant not found", StatusCode: http.StatusNotFound}
	ErrNoActiveTenant = &AppError{Code: "NO_ACTIVE_TENANT", Message: "No active tenant for this user", StatusCode: http.StatusConflict}
)

// Account errors.
var (
	ErrAccountNotFound      = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrAccountGroupNotFound = &AppError{Code: "ACCOUNT_GROUP_NOT_FOUND", Message: "Account group not found", StatusCode: http.StatusNotFound}
)

// Category errors.
var (
	ErrCategoryNotFound      = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrCategoryGroupNotFound = &AppError{Code: "CATEGORY_GROUP_NOT_FOUND", Message: "Category group not found", StatusCode: http.StatusNotFound}
	ErrSelfParentCategory    = &AppError{Code: "SELF_PARENT_CATEGORY", Message: "A category cannot be its own parent", StatusCode: http.StatusBadRequest}
)

// Group deletion guard, shared by account and category groups.
var (
	ErrGroupInUse = &AppError{Code: "GROUP_IN_USE", Message: "Group is still referenced by existing entities", StatusCode: http.StatusConflict}
)

// Transaction errors.
var (
	ErrTransactionNotFound    = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrInvalidTransactionType = &AppError{Code: "INVALID_TRANSACTION_TYPE", Message: "Unsupported transaction type", StatusCode: http.StatusBadRequest}
	ErrSameAccountTransfer    = &AppError{Code: "SAME_ACCOUNT_TRANSFER", Message: "Cannot transfer to the same account", StatusCode: http.StatusBadRequest}
	ErrSameCategoryTransfer   = &AppError{Code: "SAME_CATEGORY_TRANSFER", Message: "Cannot transfer to the same category", StatusCode: http.StatusBadRequest}
)

// Recipient and tag errors.
var (
	ErrRecipientNotFound = &AppError{Code: "RECIPIENT_NOT_FOUND", Message: "Recipient not found", StatusCode: http.StatusNotFound}
	ErrTagNotFound       = &AppError{Code: "TAG_NOT_FOUND", Message: "Tag not found", StatusCode: http.StatusNotFound}
)

// Planning errors.
var (
	ErrPlanningNotFound  = &AppError{Code: "PLANNING_NOT_FOUND", Message: "Planning transaction not found", StatusCode: http.StatusNotFound}
	ErrInvalidRecurrence = &AppError{Code: "INVALID_RECURRENCE", Message: "Unsupported recurrence", StatusCode: http.StatusBadRequest}
)

// Rule errors.
var (
	ErrRuleNotFound = &AppError{Code: "RULE_NOT_FOUND", Message: "Rule not found", StatusCode: http.StatusNotFound}
)

// Sync errors.
var (
	ErrInvalidSyncRecord = &AppError{Code: "INVALID_SYNC_RECORD", Message: "Malformed sync change record", StatusCode: http.StatusBadRequest}
)
