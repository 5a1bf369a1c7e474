// Package mocks provides mock implementations for testing the dispatch job system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, GetByID, GetByExternalID, Update, ListResumable
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/dispatchlab/dispatch/internal/core JobRepository

// Generate mock for ComputeClient interface from internal/core package.
// This creates MockComputeClient with methods for all ComputeClient interface methods:
// Run, Status
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=compute_client_mock.go github.com/dispatchlab/dispatch/internal/core ComputeClient

// Generate mock for Canceller interface from internal/core package.
// This creates MockCanceller with methods for all Canceller interface methods:
// RequestCancel, IsCancelRequested, Clear
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=canceller_mock.go github.com/dispatchlab/dispatch/internal/core Canceller

// Generate mock for PollerStarter interface from internal/core package.
// This creates MockPollerStarter with methods for all PollerStarter interface methods:
// Start
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=poller_starter_mock.go github.com/dispatchlab/dispatch/internal/core PollerStarter
