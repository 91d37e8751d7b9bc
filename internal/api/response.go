package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Bindery/internal/ocrclient"
	"github.com/shaiso/Bindery/internal/pipeline"
	"github.com/shaiso/Bindery/internal/repo"
	"github.com/shaiso/Bindery/internal/workflow"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest       ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeInvalidState     ErrorCode = "INVALID_STATE"
	ErrCodeInternalError    ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnknownWorkflow  ErrorCode = "UNKNOWN_WORKFLOW"
	ErrCodeNoSubject        ErrorCode = "NO_SUBJECT"
	ErrCodeMultipleSubjects ErrorCode = "MULTIPLE_SUBJECTS"
	ErrCodeInvalidImage     ErrorCode = "INVALID_IMAGE"
	ErrCodeCollaborator     ErrorCode = "COLLABORATOR_ERROR"
	ErrCodeTimeout          ErrorCode = "TIMEOUT"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// Accepted отправляет ответ 202 о принятой в обработку команде.
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, DataResponse{Data: data})
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// ErrorWithDetails отправляет ответ с ошибкой и контекстом.
func ErrorWithDetails(w http.ResponseWriter, status int, code ErrorCode, message string, details map[string]any) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// InvalidState отправляет ошибку 422.
func InvalidState(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnprocessableEntity, ErrCodeInvalidState, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleRepoError преобразует ошибку репозитория в HTTP ответ.
func HandleRepoError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, repo.ErrNotFound) {
		NotFound(w, notFoundMsg)
		return true
	}

	if errors.Is(err, repo.ErrInvalidState) {
		InvalidState(w, err.Error())
		return true
	}

	InternalError(w, logger, err)
	return true
}

// HandleWorkflowError преобразует ошибку workflow в HTTP ответ.
//
// Доменные исходы валидации — различимые 422 с контекстом; неизвестный
// workflow — 400 со списком допустимых имён; отказы коллаборатора —
// 502/504. Остальное — 500.
func HandleWorkflowError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	var unknown *workflow.UnknownWorkflowError
	if errors.As(err, &unknown) {
		ErrorWithDetails(w, http.StatusBadRequest, ErrCodeUnknownWorkflow, unknown.Error(),
			map[string]any{"valid": unknown.Valid})
		return true
	}

	var noSubject *pipeline.NoSubjectError
	if errors.As(err, &noSubject) {
		ErrorWithDetails(w, http.StatusUnprocessableEntity, ErrCodeNoSubject, noSubject.Error(),
			map[string]any{"reason": noSubject.Reason})
		return true
	}

	var multiple *pipeline.MultipleSubjectsError
	if errors.As(err, &multiple) {
		ErrorWithDetails(w, http.StatusUnprocessableEntity, ErrCodeMultipleSubjects, multiple.Error(),
			map[string]any{"count": multiple.Count, "suggestion": multiple.Suggestion})
		return true
	}

	if errors.Is(err, pipeline.ErrInvalidImage) {
		Error(w, http.StatusUnprocessableEntity, ErrCodeInvalidImage, err.Error())
		return true
	}

	if errors.Is(err, ocrclient.ErrTimeout) {
		Error(w, http.StatusGatewayTimeout, ErrCodeTimeout, err.Error())
		return true
	}

	var remote *ocrclient.RemoteError
	if errors.As(err, &remote) || errors.Is(err, ocrclient.ErrConnection) || errors.Is(err, ocrclient.ErrMalformedResponse) {
		Error(w, http.StatusBadGateway, ErrCodeCollaborator, err.Error())
		return true
	}

	if errors.Is(err, repo.ErrNotFound) {
		NotFound(w, "artifact not found")
		return true
	}

	InternalError(w, logger, err)
	return true
}
