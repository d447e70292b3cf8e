// Package errors maps errors to short, low-cardinality class names for metric tags and alerts.
package errors

import (
	"context"
	goerrors "errors"
	"io/fs"
	"net"
	"os/exec"
	"reflect"
	"strings"
)

// Classify returns a snake_case class for err, or "" for nil. Well-known failures of
// stage commands, deletion and delivery get stable names; anything else is named
// after the innermost wrapped type, e.g. "errors_errorstring".
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var (
		exitErr *exec.ExitError
		netErr  net.Error
	)
	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.As(err, &exitErr):
		return "exit_status"
	case goerrors.Is(err, exec.ErrNotFound):
		return "command_not_found"
	case goerrors.Is(err, fs.ErrPermission):
		return "permission_denied"
	case goerrors.Is(err, fs.ErrNotExist):
		return "not_exist"
	case goerrors.As(err, &netErr):
		return "network"
	}
	return typeName(err)
}

func typeName(err error) string {
	for {
		inner := goerrors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.String() == "" {
		return "unknown"
	}
	return strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
}
