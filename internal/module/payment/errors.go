package payment

import (
	apperrors "github.com/kislikjeka/grandlivre/internal/shared/errors"
)

var (
	ErrPaymentNotFound     = apperrors.NotFound("payment")
	ErrInvalidPaymentType  = apperrors.Validation("payment type must be inbound or outbound")
	ErrInvalidPartnerType  = apperrors.Validation("partner type must be customer or supplier")
	ErrInvalidMethod       = apperrors.Validation("invalid payment method")
	ErrMissingPartner      = apperrors.Validation("partner is required")
	ErrMissingJournal      = apperrors.Validation("journal is required")
	ErrNonPositiveAmount   = apperrors.User("payment amount must be positive")
	ErrNotDraft            = apperrors.User("only draft payments can be posted")
	ErrNotCancelled        = apperrors.User("only cancelled payments can be reset to draft")
	ErrAlreadyCancelled    = apperrors.User("payment is already cancelled")
	ErrNotLiquidityJournal = apperrors.User("payments must use a bank or cash journal")
	ErrNoLiquidityAccount  = apperrors.User("journal has no default account")
	ErrTermNotFound        = apperrors.NotFound("payment term")
	ErrMissingTermName     = apperrors.Validation("payment term name is required")
	ErrInvalidTermValue    = apperrors.Validation("invalid payment term line value")
	ErrInvalidDelayType    = apperrors.Validation("invalid payment term delay type")
	ErrTermWithoutBalance  = apperrors.Validation("the last payment term line must be a balance line")
	ErrInvalidTermPercent  = apperrors.Validation("percentage must be between 0 and 100")
	ErrNegativeTermDays    = apperrors.Validation("number of days cannot be negative")
)
