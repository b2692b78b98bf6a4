package workflowerrors

import (
	"net/http"

	"stafflink/internal/shared/apperror"
)

var (
	// ErrOpenWorkflowExists is a policy skip, not a failure.
	ErrOpenWorkflowExists = apperror.New(
		apperror.CodeConflict,
		"An open workflow of this type already exists for the entity",
		http.StatusConflict,
	)
	ErrInvalidDraft = apperror.New(
		apperror.CodeInvalidInput,
		"Workflow draft is missing required fields",
		http.StatusBadRequest,
	)
)
