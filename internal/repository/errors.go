package repository

import "errors"

var (
	ErrUserNotFound             = errors.New("user not found")
	ErrEmailTaken               = errors.New("email already registered")
	ErrPlanNotFound             = errors.New("plan not found")
	ErrReportNotFound           = errors.New("report not found")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionStatusInvalid = errors.New("transaction status does not allow this change")
	ErrNotificationNotFound     = errors.New("notification not found")
	ErrMovementReportNotFound   = errors.New("movement report not found")
	ErrMovementItemsUnavailable = errors.New("movement items missing or already attached")
	ErrOutboxMessageSettled     = errors.New("outbox message already settled")
)
