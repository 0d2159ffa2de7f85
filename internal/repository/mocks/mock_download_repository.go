package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"appstore/internal/model"
)

type MockDownloadRepository struct {
	mock.Mock
}

func (m *MockDownloadRepository) Create(ctx context.Context, d *model.Download) (*model.Download, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Download), args.Error(1)
}

func (m *MockDownloadRepository) ListByApp(ctx context.Context, appID string) ([]model.Download, error) {
	args := m.Called(ctx, appID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Download), args.Error(1)
}

func (m *MockDownloadRepository) ListByDeveloper(ctx context.Context, developerID string) ([]model.Download, error) {
	args := m.Called(ctx, developerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Download), args.Error(1)
}
