// Package mocks provides mock implementations of the console's ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the backend-facing interfaces.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	client := mocks.NewMockAuthClient(ctrl)
//	client.EXPECT().CurrentUser(gomock.Any(), "token").Return(user, nil)
package mocks

// Generate mock for AuthClient interface from internal/ports package.
// This creates MockAuthClient with methods for all AuthClient interface methods:
// Login, CurrentUser, Logout
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_client_mock.go github.com/target/esg-checklist-ui/internal/ports AuthClient

// Generate mock for ResourceClient interface from internal/ports package.
// This creates MockResourceClient with methods for all ResourceClient interface methods:
// GetJSON
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=resource_client_mock.go github.com/target/esg-checklist-ui/internal/ports ResourceClient
