package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"appstore/internal/model"
	"appstore/internal/repository"
)

type MockApplicationRepository struct {
	mock.Mock
}

func (m *MockApplicationRepository) Create(ctx context.Context, app *model.Application) (*model.Application, error) {
	args := m.Called(ctx, app)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Application), args.Error(1)
}

func (m *MockApplicationRepository) FindByID(ctx context.Context, id string) (*model.Application, error) {
	return m.one(m.Called(ctx, id))
}

func (m *MockApplicationRepository) FindByTitle(ctx context.Context, title string) (*model.Application, error) {
	return m.one(m.Called(ctx, title))
}

func (m *MockApplicationRepository) FindByPackageURL(ctx context.Context, apkURL string) (*model.Application, error) {
	return m.one(m.Called(ctx, apkURL))
}

func (m *MockApplicationRepository) List(ctx context.Context, q repository.ListQuery) (*repository.PageResult[model.ApplicationSummary], error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.ApplicationSummary]), args.Error(1)
}

func (m *MockApplicationRepository) ListByDeveloper(ctx context.Context, developerID string) ([]model.Application, error) {
	args := m.Called(ctx, developerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Application), args.Error(1)
}

func (m *MockApplicationRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockApplicationRepository) one(args mock.Arguments) (*model.Application, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Application), args.Error(1)
}
