package fiscal

import (
	apperrors "github.com/kislikjeka/grandlivre/internal/shared/errors"
)

var (
	// Fiscal year errors
	ErrYearNotFound     = apperrors.NotFound("fiscal year")
	ErrMissingYearName  = apperrors.Validation("fiscal year name and code are required")
	ErrInvalidDateRange = apperrors.Validation("start date must be before end date")
	ErrYearOverlap      = apperrors.Validation("fiscal years of a company cannot overlap")
	ErrYearClosed       = apperrors.User("fiscal year is closed")
	ErrYearHasOpen      = apperrors.User("fiscal year still has open periods")
	ErrYearAlreadyOpen  = apperrors.User("fiscal year is not closed")

	// Period errors
	ErrPeriodNotFound    = apperrors.NotFound("period")
	ErrPeriodsExist      = apperrors.User("periods already exist for this fiscal year")
	ErrPeriodClosed      = apperrors.User("period is closed")
	ErrPeriodHasDrafts   = apperrors.User("period still has draft entries")
	ErrPeriodAlreadyOpen = apperrors.User("period is not closed")

	// Fiscal position errors
	ErrPositionNotFound    = apperrors.NotFound("fiscal position")
	ErrMissingPositionName = apperrors.Validation("fiscal position name is required")
)
