package chart

import (
	apperrors "github.com/kislikjeka/grandlivre/internal/shared/errors"
)

var (
	// Account errors
	ErrAccountNotFound      = apperrors.NotFound("account")
	ErrAccountCodeTooShort  = apperrors.Validation("account code must have at least 3 characters")
	ErrDuplicateAccountCode = apperrors.Validation("account code already exists in this company")
	ErrMissingAccountName   = apperrors.Validation("account name is required")
	ErrInvalidAccountType   = apperrors.Validation("invalid account type")
	ErrParentNotFound       = apperrors.NotFound("parent account")
	ErrParentCycle          = apperrors.Validation("account cannot be its own ancestor")
	ErrNoAccountOfType      = apperrors.NotFound("account of the requested type")

	// Journal errors
	ErrJournalNotFound      = apperrors.NotFound("journal")
	ErrJournalCodeLength    = apperrors.Validation("journal code must have 1 to 5 characters")
	ErrDuplicateJournalCode = apperrors.Validation("journal code already exists in this company")
	ErrMissingJournalName   = apperrors.Validation("journal name is required")
	ErrInvalidJournalType   = apperrors.Validation("invalid journal type")

	// Tax errors
	ErrTaxNotFound          = apperrors.NotFound("tax")
	ErrMissingTaxName       = apperrors.Validation("tax name is required")
	ErrInvalidTaxAmountType = apperrors.Validation("invalid tax amount type")
	ErrGroupWithoutChildren = apperrors.Validation("group tax must have children")
	ErrTaxGroupTooDeep      = apperrors.Validation("tax groups cannot be nested more than once")
)
