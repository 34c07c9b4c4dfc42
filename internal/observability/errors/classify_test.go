package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/target/esg-checklist-ui/internal/adapters/wschannel"
	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
	"github.com/target/esg-checklist-ui/internal/service"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "credential failure", err: fmt.Errorf("login: %w", &domainauth.Failure{Kind: domainauth.FailureCredential}), want: "credential"},
		{name: "kindless failure", err: &domainauth.Failure{}, want: "backend"},
		{name: "deadline", err: fmt.Errorf("fetch: %w", context.DeadlineExceeded), want: "timeout"},
		{name: "polling timeout", err: service.ErrPollingTimeout, want: "polling_timeout"},
		{name: "reconnect exhausted", err: wschannel.ErrReconnectExhausted, want: "reconnect_exhausted"},
		{name: "innermost type", err: fmt.Errorf("dial: %w", &net.OpError{Op: "dial", Err: errors.New("refused")}), want: "errors_errorstring"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
