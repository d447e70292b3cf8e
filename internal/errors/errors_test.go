package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "no reservation", (&AppError{Code: ErrCodeNotFound, Message: "no reservation"}).Error())
	assert.Equal(t, "folder: folder is required", ValidationField("folder", "folder is required").Error())
	assert.Equal(t, "rows affected: driver gone", Wrap(errors.New("driver gone"), ErrCodeInternal, "rows affected").Error())
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, ErrCodeInternal, "unused"))

	cause := errors.New("dial tcp: refused")
	err := Wrap(cause, ErrCodeUnavailable, "ledger database unreachable")
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsUnavailable(err))
}

func TestCodeOf_FindsWrappedAppError(t *testing.T) {
	err := fmt.Errorf("reserve version: %w", NotFoundf("no reservation for %s/%s", "demo", "Classifier"))
	assert.Equal(t, ErrCodeNotFound, CodeOf(err))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
	assert.Contains(t, err.Error(), "demo/Classifier")

	assert.Empty(t, CodeOf(errors.New("plain")))
	assert.Empty(t, FieldOf(errors.New("plain")))
}

func TestRetryableAndExitCode(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		exit      int
	}{
		{name: "nil", err: nil, exit: 0},
		{name: "plain", err: errors.New("boom"), exit: ExitFailure},
		{name: "validation", err: ValidationField("repository", "required"), exit: ExitUsage},
		{name: "not found", err: NotFoundf("missing"), exit: ExitFailure},
		{name: "conflict", err: Wrap(errors.New("x"), ErrCodeConflict, "race"), retryable: true, exit: ExitTempFail},
		{name: "timeout", err: MapDBError(context.DeadlineExceeded), retryable: true, exit: ExitTempFail},
		{name: "unavailable", err: Wrap(errors.New("x"), ErrCodeUnavailable, "down"), retryable: true, exit: ExitUnavailable},
		{name: "canceled", err: MapDBError(context.Canceled), exit: ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, Retryable(tt.err))
			assert.Equal(t, tt.exit, ExitCode(tt.err))
		})
	}
}
