package service

import "errors"

// Виды ошибок бизнес-логики. Транспортный слой сопоставляет их с HTTP-статусами,
// всё остальное считается внутренней ошибкой.
var (
	ErrValidation         = errors.New("validation error")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrPolicyViolation    = errors.New("policy violation")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrBusy: запись заблокирована параллельной операцией, запрос можно повторить
	ErrBusy               = errors.New("resource is busy")
)
