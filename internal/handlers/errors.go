package handlers

import (
	"context"
	"errors"
	"net/http"

	"taskBoard/internal/board"
	"taskBoard/internal/logger"
	"taskBoard/internal/service"

	"go.uber.org/zap"
)

// handleError пишет ответ для ошибки сервиса или доски
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var businessErr *service.BusinessError
	if errors.As(err, &businessErr) {
		statusCode := mapBusinessErrorToHTTP(businessErr.Code)

		logger.Warn("HTTP: Бизнес-ошибка",
			zap.String("error_code", businessErr.Code),
			zap.Int("http_status", statusCode),
			zap.String("client_ip", r.RemoteAddr))

		responseWithJSON(w, statusCode,
			toPayload("error", businessErr.Code),
			toPayload("message", businessErr.Message),
			toPayload("details", businessErr.Details),
		)
		return
	}

	switch {
	case errors.Is(err, board.ErrDeclined):
		responseWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("HTTP: Истекло время ожидания", zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusGatewayTimeout, "превышено время ожидания")
	default:
		logger.Error("HTTP: Внутренняя ошибка", err, zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
	}
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeVersionConflict, board.CodeMutationInFlight:
		return http.StatusConflict
	case board.CodeConfirmationRequired:
		return http.StatusPreconditionRequired
	case service.CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
