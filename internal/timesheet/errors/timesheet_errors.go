package timesheeterrors

import (
	"net/http"

	"stafflink/internal/shared/apperror"
)

var (
	ErrTimesheetNotFound = apperror.New(
		apperror.CodeNotFound,
		"Timesheet not found",
		http.StatusNotFound,
	)
	ErrInvalidTimesheetID = apperror.New(
		apperror.CodeInvalidInput,
		"Invalid timesheet ID",
		http.StatusBadRequest,
	)
)
