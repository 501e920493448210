package response

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	apperrors "github.com/welldanyogia/node-attachments-backend/internal/errors"
)

// APIResponse is the envelope of every successful JSON body
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the envelope of every failed JSON body
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// BulkDeleteResponse reports the attachments a cascade delete left behind
type BulkDeleteResponse struct {
	ErrorResponse
	NodeID   uint                      `json:"node_id"`
	Failures []apperrors.DeleteFailure `json:"failures"`
}

// PaginatedResponse is a page of a list plus its position
type PaginatedResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Meta    Meta        `json:"meta"`
}

// Meta contains pagination metadata
type Meta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

const internalErrorMessage = "Internal server error"

var statusByCode = map[string]int{
	apperrors.CodeNotFound:          http.StatusNotFound,
	apperrors.CodeInvalidInput:      http.StatusBadRequest,
	apperrors.CodeEmptyInput:        http.StatusBadRequest,
	apperrors.CodeFileTooLarge:      http.StatusBadRequest,
	apperrors.CodeUnsupportedType:   http.StatusBadRequest,
	apperrors.CodeSignatureMismatch: http.StatusBadRequest,
	apperrors.CodeUnreadable:        http.StatusBadRequest,
	apperrors.CodeLimitExceeded:     http.StatusConflict,
	apperrors.CodeUnauthorized:      http.StatusUnauthorized,
	apperrors.CodeForbidden:         http.StatusForbidden,
	apperrors.CodeStorageFailure:    http.StatusInternalServerError,
	apperrors.CodePersistFailure:    http.StatusInternalServerError,
	apperrors.CodeBulkDeleteFailed:  http.StatusInternalServerError,
}

// HTTPStatus maps an error code to its status; unknown codes are 500
func HTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Success writes 200 with data
func Success(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// Created writes 201 with data
func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// NoContent writes 204
func NoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// Paginated writes 200 with one page of data
func Paginated(c echo.Context, data interface{}, total int64, limit, offset int) error {
	return c.JSON(http.StatusOK, PaginatedResponse{
		Success: true,
		Data:    data,
		Meta:    Meta{Total: total, Limit: limit, Offset: offset},
	})
}

// Error writes err with the status its code maps to. Errors that carry no
// application message are reported generically so driver and filesystem
// details stay in the logs.
func Error(c echo.Context, err error) error {
	if bulkErr := apperrors.GetBulkDeleteError(err); bulkErr != nil {
		return c.JSON(http.StatusInternalServerError, BulkDeleteResponse{
			ErrorResponse: ErrorResponse{Error: bulkErr.Error(), Code: apperrors.CodeBulkDeleteFailed},
			NodeID:        bulkErr.NodeID,
			Failures:      bulkErr.Failures,
		})
	}

	code := apperrors.GetErrorCode(err)
	return fail(c, HTTPStatus(code), code, publicMessage(err, code))
}

// BadRequest writes 400 INVALID_INPUT
func BadRequest(c echo.Context, message string) error {
	return fail(c, http.StatusBadRequest, apperrors.CodeInvalidInput, message)
}

// NotFound writes 404 NOT_FOUND
func NotFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, apperrors.CodeNotFound, message)
}

func fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, ErrorResponse{Error: message, Code: code})
}

func publicMessage(err error, code string) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	if code == apperrors.CodeInternalError {
		return internalErrorMessage
	}
	return err.Error()
}
