package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"appstore/internal/model"
	"appstore/internal/repository"
	"appstore/internal/storage"
)

// Downloader identifies who fetched an asset. UserID is empty for anonymous requests.
type Downloader struct {
	UserID    string
	IP        string
	UserAgent string
}

// DownloadService streams stored assets and records package downloads.
type DownloadService interface {
	// Open resolves rel below the asset tree and opens it. The caller closes the reader.
	Open(ctx context.Context, rel string, who Downloader) (io.ReadCloser, storage.ObjectInfo, error)
}

type downloadService struct {
	store     storage.Storage
	apps      repository.ApplicationRepository
	downloads repository.DownloadRepository
	metrics   *Metrics
	log       logrus.FieldLogger
}

// NewDownloadService constructs a DownloadService. metrics may be nil.
func NewDownloadService(
	store storage.Storage,
	apps repository.ApplicationRepository,
	downloads repository.DownloadRepository,
	metrics *Metrics,
	log logrus.FieldLogger,
) DownloadService {
	return &downloadService{
		store:     store,
		apps:      apps,
		downloads: downloads,
		metrics:   metrics,
		log:       log.WithField("component", "download"),
	}
}

func (s *downloadService) Open(ctx context.Context, rel string, who Downloader) (io.ReadCloser, storage.ObjectInfo, error) {
	key, err := storage.ResolveAssetKey(rel)
	if err != nil {
		return nil, storage.ObjectInfo{}, fmt.Errorf("%w: file not found", ErrNotFound)
	}

	rc, info, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, storage.ObjectInfo{}, fmt.Errorf("%w: file not found", ErrNotFound)
		}
		s.log.WithError(err).WithField("key", key).Error("asset read failed")
		return nil, storage.ObjectInfo{}, fmt.Errorf("%w: read file", ErrStorage)
	}

	if packageExts[strings.ToLower(path.Ext(key))] {
		s.record(ctx, key, who)
	}
	return rc, info, nil
}

// record stores a download row for a known package. Failures are logged only.
func (s *downloadService) record(ctx context.Context, key string, who Downloader) {
	logCtx := s.log.WithField("key", key)

	app, err := s.apps.FindByPackageURL(ctx, storage.PublicURL(key))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logCtx.WithError(err).Warn("download not recorded: app lookup failed")
		}
		return
	}

	d, err := s.downloads.Create(ctx, &model.Download{
		ID:        uuid.New().String(),
		AppID:     app.ID,
		UserID:    who.UserID,
		IP:        who.IP,
		UserAgent: who.UserAgent,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		logCtx.WithError(err).WithField("app_id", app.ID).Warn("download not recorded")
		return
	}
	s.metrics.download()
	logCtx.WithFields(logrus.Fields{"app_id": app.ID, "download_id": d.ID, "user_id": who.UserID}).Info("download recorded")
}
