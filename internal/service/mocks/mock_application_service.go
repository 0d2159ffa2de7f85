package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"appstore/internal/model"
	"appstore/internal/service"
)

type MockApplicationService struct {
	mock.Mock
}

func (m *MockApplicationService) Upload(ctx context.Context, developerID string, meta service.AppMetadata, files service.AssetFiles) (*model.Application, error) {
	args := m.Called(ctx, developerID, meta, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Application), args.Error(1)
}

func (m *MockApplicationService) Create(ctx context.Context, developerID string, meta service.AppMetadata, assets service.AssetPaths) (*model.Application, error) {
	args := m.Called(ctx, developerID, meta, assets)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Application), args.Error(1)
}

func (m *MockApplicationService) List(ctx context.Context, p service.ListParams) (*service.ApplicationListResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ApplicationListResult), args.Error(1)
}

func (m *MockApplicationService) Get(ctx context.Context, id string) (*model.Application, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Application), args.Error(1)
}

func (m *MockApplicationService) ListForDeveloper(ctx context.Context, developerID string) ([]model.Application, error) {
	args := m.Called(ctx, developerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Application), args.Error(1)
}

func (m *MockApplicationService) Delete(ctx context.Context, id, requesterID string) error {
	args := m.Called(ctx, id, requesterID)
	return args.Error(0)
}

func (m *MockApplicationService) DeveloperStats(ctx context.Context, developerID string) (*model.DeveloperStats, error) {
	args := m.Called(ctx, developerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeveloperStats), args.Error(1)
}
