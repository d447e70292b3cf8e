package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"io/fs"
	"net"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stageError struct{}

func (stageError) Error() string { return "stage" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "wrapped deadline", err: fmt.Errorf("run CLASSIFY: %w", context.DeadlineExceeded), want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "exit status", err: fmt.Errorf("git clone: %w", &exec.ExitError{}), want: "exit_status"},
		{name: "missing binary", err: &exec.Error{Name: "doc-gen", Err: exec.ErrNotFound}, want: "command_not_found"},
		{name: "permission", err: &fs.PathError{Op: "remove", Path: "/x", Err: fs.ErrPermission}, want: "permission_denied"},
		{name: "not exist", err: fmt.Errorf("open: %w", fs.ErrNotExist), want: "not_exist"},
		{name: "network", err: &net.OpError{Op: "dial", Err: goerrors.New("refused")}, want: "network"},
		{name: "plain", err: goerrors.New("boom"), want: "errors_errorstring"},
		{name: "value type", err: fmt.Errorf("wrap: %w", stageError{}), want: "errors_stageerror"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
