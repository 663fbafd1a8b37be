package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/omriShneor/project_concierge/internal/agent"
)

// MockModelClient is a mock implementation of the model client
type MockModelClient struct {
	mock.Mock
}

func (m *MockModelClient) Call(ctx context.Context, messages []agent.Message, opts agent.CallOptions) (*agent.APIResponse, error) {
	args := m.Called(ctx, messages, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*agent.APIResponse), args.Error(1)
}
