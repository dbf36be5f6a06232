package ledger

import (
	"fmt"

	apperrors "github.com/kislikjeka/grandlivre/internal/shared/errors"
)

// Scope errors
var (
	ErrMissingCompany = apperrors.Validation("company is required")
)

// Entry errors
var (
	ErrEntryNotFound     = apperrors.NotFound("entry")
	ErrInvalidMoveType   = apperrors.Validation("invalid move type")
	ErrJournalNotFound   = apperrors.NotFound("journal")
	ErrEmptyEntry        = apperrors.User("entry must have at least one line")
	ErrUnbalanced        = apperrors.Validation("entry is not balanced")
	ErrNotDraft          = apperrors.User("only draft entries can be modified or posted")
	ErrNotPosted         = apperrors.User("only posted entries can be reversed")
	ErrNotCancelled      = apperrors.User("only cancelled entries can be reset to draft")
	ErrAlreadyCancelled  = apperrors.User("entry is already cancelled")
	ErrHasSettlements    = apperrors.User("cannot cancel an entry with reconciled lines")
	ErrEntryWasPosted    = apperrors.User("an entry that was posted cannot be deleted")
	ErrSequenceExhausted = apperrors.Consistency("sequence returned an invalid number")
)

// Line errors
var (
	ErrLineNotFound      = apperrors.NotFound("line")
	ErrMissingAccount    = apperrors.Validation("line account is required")
	ErrAccountNotFound   = apperrors.NotFound("account")
	ErrAccountDeprecated = apperrors.Validation("account is deprecated")
	ErrNegativeAmount    = apperrors.Validation("debit and credit cannot be negative")
	ErrDebitAndCredit    = apperrors.Validation("a line cannot have both a debit and a credit")
	ErrLineNotInEntry    = apperrors.Validation("line does not belong to entry")
)

// Reconciliation errors
var (
	ErrNothingToMatch         = apperrors.User("nothing to reconcile: no debit/credit pair with open residual")
	ErrAccountMismatch        = apperrors.User("lines to reconcile must share the same account")
	ErrAccountNotReconcilable = apperrors.User("account does not allow reconciliation")
	ErrLineNotPosted          = apperrors.User("only lines of posted entries can be reconciled")
	ErrPartialNotFound        = apperrors.NotFound("partial settlement")
	ErrFullNotFound           = apperrors.NotFound("full settlement")
	ErrNegativeResidual       = apperrors.Consistency("line residual is negative")
)

// wrapf adds detail to a sentinel while keeping errors.Is working
func wrapf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
