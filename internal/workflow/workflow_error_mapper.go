package workflow

import (
	"errors"
	"strings"

	workflowerrors "stafflink/internal/workflow/errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const openEntityConstraint = "uq_admin_workflows_open_entity"

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" && pgErr.ConstraintName == openEntityConstraint {
			return workflowerrors.ErrOpenWorkflowExists.WithCause(err)
		}
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "duplicate key value") && strings.Contains(errMsg, openEntityConstraint) {
		return workflowerrors.ErrOpenWorkflowExists.WithCause(err)
	}

	return err
}
