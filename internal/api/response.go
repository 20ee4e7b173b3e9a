package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/ingress"
	"github.com/shaiso/Shipyard/internal/repo"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest       ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodePipelineNotFound ErrorCode = "PIPELINE_NOT_FOUND"
	ErrCodeInvalidPipeline  ErrorCode = "INVALID_PIPELINE"
	ErrCodeNoRoute          ErrorCode = "NO_ROUTE"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeRunFinished      ErrorCode = "RUN_FINISHED"
	ErrCodeRunNotPending    ErrorCode = "RUN_NOT_PENDING"
	ErrCodeInternalError    ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
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

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет 200 с данными.
func Success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет 201 с созданным run.
func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, DataResponse{Data: data})
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	writeJSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// InternalError логирует err и отправляет 500 без подробностей.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleError преобразует ошибку хранилища, конфигурации pipeline
// или таблицы маршрутов в HTTP ответ. Возвращает false, если err == nil.
//
// notFoundMsg заменяет текст для repo.ErrNotFound.
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, repo.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = err.Error()
		}
		NotFound(w, notFoundMsg)
	case errors.Is(err, config.ErrConfigNotFound):
		Error(w, http.StatusNotFound, ErrCodePipelineNotFound, err.Error())
	case errors.Is(err, config.ErrInvalidConfig):
		Error(w, http.StatusBadRequest, ErrCodeInvalidPipeline, err.Error())
	case errors.Is(err, ingress.ErrNoRoute):
		Error(w, http.StatusNotFound, ErrCodeNoRoute, err.Error())
	case errors.Is(err, ingress.ErrInvalidRule):
		BadRequest(w, err.Error())
	case errors.Is(err, repo.ErrAlreadyExists):
		Error(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, domain.ErrRunFinished):
		Error(w, http.StatusConflict, ErrCodeRunFinished, err.Error())
	case errors.Is(err, repo.ErrInvalidState):
		Error(w, http.StatusConflict, ErrCodeRunNotPending, err.Error())
	default:
		InternalError(w, logger, err)
	}
	return true
}
