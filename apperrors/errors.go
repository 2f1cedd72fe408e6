// Package apperrors defines the errors the category service reports to its
// callers. Each AppError carries the HTTP status it maps to and, optionally,
// the internal cause, which is logged but never rendered.
package apperrors

import "net/http"

// AppError is a structured application error
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

// Unwrap exposes the internal cause to errors.Is and errors.As
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches any AppError with the same code, so a wrapped copy still
// compares equal to its sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap copies a sentinel and attaches an internal cause
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage copies a sentinel with a different client-facing message
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Category errors.
var (
	ErrCategoryNotFound    = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrParentNotFound      = &AppError{Code: "PARENT_NOT_FOUND", Message: "Parent category not found", StatusCode: http.StatusNotFound}
	ErrDuplicateCategory   = &AppError{Code: "DUPLICATE_CATEGORY", Message: "A category with this name already exists", StatusCode: http.StatusConflict}
	ErrSelfParent          = &AppError{Code: "SELF_PARENT", Message: "A category cannot be its own parent", StatusCode: http.StatusBadRequest}
	ErrDescendantParent    = &AppError{Code: "DESCENDANT_PARENT", Message: "A descendant cannot become the parent of its ancestor", StatusCode: http.StatusBadRequest}
	ErrCategoryHasChildren = &AppError{Code: "CATEGORY_HAS_CHILDREN", Message: "Category still has child categories", StatusCode: http.StatusConflict}
	ErrCategoryHasProducts = &AppError{Code: "CATEGORY_HAS_PRODUCTS", Message: "Category still has products", StatusCode: http.StatusConflict}
	ErrInvalidReorder      = &AppError{Code: "INVALID_REORDER", Message: "Ordered ids must match the current siblings exactly", StatusCode: http.StatusBadRequest}
)
