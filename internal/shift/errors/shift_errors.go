package shifterrors

import (
	"net/http"

	"stafflink/internal/shared/apperror"
)

var (
	ErrShiftNotFound = apperror.New(
		apperror.CodeNotFound,
		"Shift not found",
		http.StatusNotFound,
	)
	ErrInvalidSchedule = apperror.New(
		apperror.CodeInvalidState,
		"Shift schedule cannot be resolved",
		http.StatusUnprocessableEntity,
	)
)
