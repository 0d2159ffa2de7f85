package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"appstore/internal/service"
	"appstore/internal/storage"
)

type MockDownloadService struct {
	mock.Mock
}

func (m *MockDownloadService) Open(ctx context.Context, rel string, who service.Downloader) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, rel, who)
	var rc io.ReadCloser
	if v := args.Get(0); v != nil {
		rc = v.(io.ReadCloser)
	}
	return rc, args.Get(1).(storage.ObjectInfo), args.Error(2)
}
