package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"appstore/internal/model"
	"appstore/internal/repository"
	repoMocks "appstore/internal/repository/mocks"
	"appstore/internal/storage"
	storeMocks "appstore/internal/storage/mocks"
)

func TestDownloadService_Open(t *testing.T) {
	ctx := context.Background()
	who := Downloader{UserID: devID, IP: "10.0.0.1", UserAgent: "curl/8"}
	body := func() io.ReadCloser { return io.NopCloser(strings.NewReader("PK")) }

	tests := []struct {
		name       string
		rel        string
		setupMocks func(s *storeMocks.MockStorage, a *repoMocks.MockApplicationRepository, d *repoMocks.MockDownloadRepository)
		wantErr    error
		wantCount  float64
	}{
		{
			name: "package download is recorded",
			rel:  "Foo/foo.apk",
			setupMocks: func(s *storeMocks.MockStorage, a *repoMocks.MockApplicationRepository, d *repoMocks.MockDownloadRepository) {
				s.On("Get", ctx, "apps/Foo/foo.apk").Return(body(), storage.ObjectInfo{Key: "apps/Foo/foo.apk", Size: 2}, nil)
				a.On("FindByPackageURL", ctx, "/apps/Foo/foo.apk").Return(&model.Application{ID: appID}, nil)
				d.On("Create", ctx, mock.MatchedBy(func(got *model.Download) bool {
					_, idErr := uuid.Parse(got.ID)
					return idErr == nil && !got.CreatedAt.IsZero() &&
						got.AppID == appID && got.UserID == devID &&
						got.IP == "10.0.0.1" && got.UserAgent == "curl/8"
				})).Return(&model.Download{ID: "d1"}, nil)
			},
			wantCount: 1,
		},
		{
			name: "title with spaces matches escaped url",
			rel:  "My Game/game.apk",
			setupMocks: func(s *storeMocks.MockStorage, a *repoMocks.MockApplicationRepository, d *repoMocks.MockDownloadRepository) {
				s.On("Get", ctx, "apps/My Game/game.apk").Return(body(), storage.ObjectInfo{}, nil)
				a.On("FindByPackageURL", ctx, "/apps/My%20Game/game.apk").Return(&model.Application{ID: appID}, nil)
				d.On("Create", ctx, mock.Anything).Return(&model.Download{ID: "d1"}, nil)
			},
			wantCount: 1,
		},
		{
			name: "images are not recorded",
			rel:  "Foo/screenshots/s.png",
			setupMocks: func(s *storeMocks.MockStorage, a *repoMocks.MockApplicationRepository, d *repoMocks.MockDownloadRepository) {
				s.On("Get", ctx, "apps/Foo/screenshots/s.png").Return(body(), storage.ObjectInfo{}, nil)
			},
		},
		{
			name: "orphan package is served without a row",
			rel:  "Orphan/test.apk",
			setupMocks: func(s *storeMocks.MockStorage, a *repoMocks.MockApplicationRepository, d *repoMocks.MockDownloadRepository) {
				s.On("Get", ctx, "apps/Orphan/test.apk").Return(body(), storage.ObjectInfo{}, nil)
				a.On("FindByPackageURL", ctx, "/apps/Orphan/test.apk").Return(nil, repository.ErrNotFound)
			},
		},
		{
			name:       "bare file name has no title folder",
			rel:        "test.apk",
			setupMocks: func(s *storeMocks.MockStorage, a *repoMocks.MockApplicationRepository, d *repoMocks.MockDownloadRepository) {},
			wantErr:    ErrNotFound,
		},
		{
			name: "recording failure is not fatal",
			rel:  "Foo/foo.apk",
			setupMocks: func(s *storeMocks.MockStorage, a *repoMocks.MockApplicationRepository, d *repoMocks.MockDownloadRepository) {
				s.On("Get", ctx, "apps/Foo/foo.apk").Return(body(), storage.ObjectInfo{}, nil)
				a.On("FindByPackageURL", ctx, "/apps/Foo/foo.apk").Return(&model.Application{ID: appID}, nil)
				d.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))
			},
		},
		{
			name: "traversal stays inside the asset tree",
			rel:  "../../etc/passwd",
			setupMocks: func(s *storeMocks.MockStorage, a *repoMocks.MockApplicationRepository, d *repoMocks.MockDownloadRepository) {
				s.On("Get", ctx, "apps/etc/passwd").Return(nil, storage.ObjectInfo{}, storage.ErrNotFound)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "missing file",
			rel:  "Foo/missing.apk",
			setupMocks: func(s *storeMocks.MockStorage, a *repoMocks.MockApplicationRepository, d *repoMocks.MockDownloadRepository) {
				s.On("Get", ctx, "apps/Foo/missing.apk").Return(nil, storage.ObjectInfo{}, storage.ErrNotFound)
			},
			wantErr: ErrNotFound,
		},
		{
			name:       "empty path",
			rel:        "",
			setupMocks: func(s *storeMocks.MockStorage, a *repoMocks.MockApplicationRepository, d *repoMocks.MockDownloadRepository) {},
			wantErr:    ErrNotFound,
		},
		{
			name: "backend failure",
			rel:  "Foo/foo.apk",
			setupMocks: func(s *storeMocks.MockStorage, a *repoMocks.MockApplicationRepository, d *repoMocks.MockDownloadRepository) {
				s.On("Get", ctx, "apps/Foo/foo.apk").Return(nil, storage.ObjectInfo{}, errors.New("connection reset"))
			},
			wantErr: ErrStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(storeMocks.MockStorage)
			apps := new(repoMocks.MockApplicationRepository)
			downloads := new(repoMocks.MockDownloadRepository)
			metrics, err := NewMetrics(prometheus.NewRegistry())
			require.NoError(t, err)
			log, _ := test.NewNullLogger()
			svc := NewDownloadService(store, apps, downloads, metrics, log)
			tt.setupMocks(store, apps, downloads)

			rc, _, err := svc.Open(ctx, tt.rel, who)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, rc)
			} else {
				require.NoError(t, err)
				require.NotNil(t, rc)
				rc.Close()
			}
			assert.Equal(t, tt.wantCount, testutil.ToFloat64(metrics.downloads))
			store.AssertExpectations(t)
			apps.AssertExpectations(t)
			downloads.AssertExpectations(t)
		})
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.upload("ok", 10)
		m.download()
		m.deleted()
	})
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}
