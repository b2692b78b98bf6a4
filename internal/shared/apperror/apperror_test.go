package apperror_test

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"stafflink/internal/shared/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type approveRequest struct {
	TimesheetID string `json:"timesheet_id" validate:"required"`
}

func TestToHTTP(t *testing.T) {
	t.Run("app error keeps status and code", func(t *testing.T) {
		err := apperror.Wrap(errors.New("dial tcp: refused"), apperror.CodeServiceUnavailable, "store down", http.StatusServiceUnavailable)

		got := apperror.ToHTTP(err)

		assert.Equal(t, http.StatusServiceUnavailable, got.Status)
		assert.Equal(t, apperror.CodeServiceUnavailable, got.Code)
		assert.Equal(t, "store down", got.Message)
		assert.Equal(t, "dial tcp: refused", got.Details)
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		got := apperror.ToHTTP(errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, got.Status)
		assert.Equal(t, apperror.CodeInternalError, got.Code)
	})
}

func TestMapValidationError(t *testing.T) {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	err := v.Struct(approveRequest{})

	mapped := apperror.MapValidationError(err)

	var appErr *apperror.AppError
	assert.True(t, errors.As(mapped, &appErr))
	assert.Equal(t, "Timesheet Id is required", appErr.Message)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}
