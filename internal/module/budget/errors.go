package budget

import (
	apperrors "github.com/kislikjeka/grandlivre/internal/shared/errors"
)

var (
	ErrBudgetNotFound     = apperrors.NotFound("budget")
	ErrLineNotFound       = apperrors.NotFound("budget line")
	ErrPostNotFound       = apperrors.NotFound("budgetary position")
	ErrMissingName        = apperrors.Validation("budget name is required")
	ErrInvalidDateRange   = apperrors.Validation("start date must not be after end date")
	ErrMissingTarget      = apperrors.Validation("budget line needs an account, an analytic account or a budgetary position")
	ErrNegativePlanned    = apperrors.Validation("planned amount cannot be negative")
	ErrInvalidTransition  = apperrors.User("budget cannot move to this state")
	ErrNotDraft           = apperrors.User("only draft budgets can be edited")
	ErrMissingPostName    = apperrors.Validation("budgetary position name is required")
	ErrPostWithoutAccount = apperrors.Validation("budgetary position needs at least one account")
)
