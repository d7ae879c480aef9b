package response

import (
	"errors"
	"net/http"

	"github.com/Freeeeeet/booking_engine/internal/pricing"
	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error Codes
type ErrCode string

const (
	FAILED_REQUEST            ErrCode = "REQUEST_FAILED"
	BAD_REQUEST               ErrCode = "FAILED_TO_DECODE"
	INVALID_INPUT             ErrCode = "INVALID_INPUT"
	INVALID_RATE              ErrCode = "INVALID_RATE"
	UNAUTHORIZED              ErrCode = "UNAUTHORIZED"
	FORBIDDEN                 ErrCode = "FORBIDDEN"
	NOT_FOUND                 ErrCode = "NOT_FOUND"
	SLOT_UNAVAILABLE          ErrCode = "SLOT_UNAVAILABLE"
	PAYMENT_NOT_CONFIRMED     ErrCode = "PAYMENT_NOT_CONFIRMED"
	PAYMENT_ALREADY_PROCESSED ErrCode = "PAYMENT_ALREADY_PROCESSED"
	INVALID_TRANSITION        ErrCode = "INVALID_TRANSITION"
	UNKNOWN_ORDER             ErrCode = "UNKNOWN_ORDER"
	GATEWAY_UNAVAILABLE       ErrCode = "GATEWAY_UNAVAILABLE"
	PAYMENT_TIMEOUT           ErrCode = "PAYMENT_TIMEOUT"
	OUTSIDE_START_WINDOW      ErrCode = "OUTSIDE_START_WINDOW"
	SESSION_NOT_JOINABLE      ErrCode = "SESSION_NOT_JOINABLE"
)

func Error(code ErrCode, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    string(code),
			Message: msg,
		},
	}
}

var errorMap = []struct {
	err    error
	status int
	code   ErrCode
	msg    string
}{
	{pricing.ErrInvalidRate, http.StatusBadRequest, INVALID_RATE, "base rate must be positive"},
	{service.ErrInvalidInput, http.StatusBadRequest, INVALID_INPUT, "invalid input"},
	{service.ErrForbidden, http.StatusForbidden, FORBIDDEN, "not allowed"},
	{service.ErrNotFound, http.StatusNotFound, NOT_FOUND, "resource not found"},
	{service.ErrUnknownOrder, http.StatusNotFound, UNKNOWN_ORDER, "unknown order"},
	{service.ErrSlotUnavailable, http.StatusConflict, SLOT_UNAVAILABLE, "slot no longer available"},
	{service.ErrPaymentNotConfirmed, http.StatusConflict, PAYMENT_NOT_CONFIRMED, "payment not confirmed"},
	{service.ErrPaymentAlreadyProcessed, http.StatusConflict, PAYMENT_ALREADY_PROCESSED, "payment already processed"},
	{service.ErrInvalidTransition, http.StatusConflict, INVALID_TRANSITION, "invalid state transition"},
	{service.ErrSessionNotJoinable, http.StatusConflict, SESSION_NOT_JOINABLE, "session is not joinable"},
	{service.ErrOutsideStartWindow, http.StatusUnprocessableEntity, OUTSIDE_START_WINDOW, "session cannot be started now"},
	{service.ErrGatewayUnavailable, http.StatusServiceUnavailable, GATEWAY_UNAVAILABLE, "payment gateway unavailable, try again"},
	{service.ErrPaymentTimeout, http.StatusGatewayTimeout, PAYMENT_TIMEOUT, "payment was not confirmed in time"},
}

// Status HTTP-статус и код ошибки для ошибки сервиса
func Status(err error) (int, ErrCode, string) {
	for _, m := range errorMap {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.msg
		}
	}
	return http.StatusInternalServerError, FAILED_REQUEST, "request failed"
}

// WriteError пишет ошибку сервиса; ошибки 5xx логируются как Error
func WriteError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status, code, msg := Status(err)

	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("code", string(code)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", fields...)
	} else {
		log.Info("Request rejected", fields...)
	}

	if errors.Is(err, service.ErrInvalidInput) {
		msg = err.Error()
	}

	render.Status(r, status)
	render.JSON(w, r, Error(code, msg))
}

// WriteBadRequest ответ на некорректный запрос
func WriteBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, Error(BAD_REQUEST, msg))
}
