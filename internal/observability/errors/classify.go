// Package errors normalizes errors into low-cardinality metric tags.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	"github.com/target/esg-checklist-ui/internal/adapters/wschannel"
	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
	"github.com/target/esg-checklist-ui/internal/service"
)

// Classify returns a short error class for tagging metrics and logs.
// Backend failures are classified by kind; anything else by its innermost type.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var f *domainauth.Failure
	switch {
	case goerrors.As(err, &f):
		if f.Kind == "" {
			return "backend"
		}
		return string(f.Kind)
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.Is(err, service.ErrPollingTimeout):
		return "polling_timeout"
	case goerrors.Is(err, wschannel.ErrReconnectExhausted):
		return "reconnect_exhausted"
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
