package ports_test

import (
	"testing"

	"github.com/target/esg-checklist-ui/internal/adapters/filestore"
	"github.com/target/esg-checklist-ui/internal/adapters/memstore"
	redisadapter "github.com/target/esg-checklist-ui/internal/adapters/redis"
	"github.com/target/esg-checklist-ui/internal/mocks"
	mockauth "github.com/target/esg-checklist-ui/internal/mocks/auth"
	"github.com/target/esg-checklist-ui/internal/ports"
)

// This test only verifies that adapters and test doubles conform to the ports at compile time.
func TestImplementationsSatisfyPorts(t *testing.T) {
	t.Helper()

	var _ ports.AuthClient = (*mockauth.StubAuthClient)(nil)
	var _ ports.AuthClient = (*mocks.MockAuthClient)(nil)
	var _ ports.Storage = (*memstore.Store)(nil)
	var _ ports.Storage = (*filestore.Store)(nil)
	var _ ports.Storage = (*redisadapter.Storage)(nil)
}
