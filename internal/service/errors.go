package service

import "errors"

var (
	// ErrSlotUnavailable слот заняли раньше; нормальный исход гонки, нужно заново получить список слотов
	ErrSlotUnavailable = errors.New("slot no longer available")
	// ErrPaymentNotConfirmed решение по заявке без подтверждённой оплаты
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
	// ErrUnknownOrder событие шлюза для заказа, которого у нас нет
	ErrUnknownOrder = errors.New("unknown gateway order")
	// ErrGatewayUnavailable шлюз недоступен, можно повторить
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrPaymentTimeout за отведённое время шлюз не дал окончательного статуса
	ErrPaymentTimeout = errors.New("payment timeout")
	// ErrOutsideStartWindow занятие нельзя начать в это время
	ErrOutsideStartWindow = errors.New("outside start window")

	ErrPaymentAlreadyProcessed = errors.New("payment already processed")
	ErrNotFound                = errors.New("not found")
	ErrForbidden               = errors.New("forbidden")
	ErrInvalidTransition       = errors.New("invalid state transition")
	ErrInvalidInput            = errors.New("invalid input")
	ErrSessionNotJoinable      = errors.New("session is not joinable")
)
