package statement

import (
	apperrors "github.com/kislikjeka/grandlivre/internal/shared/errors"
)

var (
	ErrStatementNotFound   = apperrors.NotFound("bank statement")
	ErrLineNotFound        = apperrors.NotFound("statement line")
	ErrMissingJournal      = apperrors.Validation("journal is required")
	ErrMissingLineName     = apperrors.Validation("statement line label is required")
	ErrZeroAmount          = apperrors.Validation("statement line amount cannot be zero")
	ErrNotLiquidityJournal = apperrors.User("statements must use a bank or cash journal")
	ErrNoLiquidityAccount  = apperrors.User("journal has no default account")
	ErrNotOpen             = apperrors.User("statement is confirmed")
	ErrAlreadyOpen         = apperrors.User("statement is already open")
	ErrLineMatched         = apperrors.User("statement line is already reconciled")
	ErrLineNotMatched      = apperrors.User("statement line is not reconciled")
	ErrEntryNotPosted      = apperrors.User("statement lines can only be matched with posted entries")
	ErrUnreconciledLines   = apperrors.User("all statement lines must be reconciled")
	ErrBalanceMismatch     = apperrors.User("computed ending balance differs from the real ending balance")
)
