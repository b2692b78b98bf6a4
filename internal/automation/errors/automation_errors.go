package automationerrors

import (
	"net/http"

	"stafflink/internal/shared/apperror"
)

var ErrUnknownJob = apperror.New(
	apperror.CodeNotFound,
	"Unknown automation job",
	http.StatusNotFound,
)
