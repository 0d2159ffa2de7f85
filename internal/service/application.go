package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"appstore/internal/model"
	"appstore/internal/repository"
	"appstore/internal/storage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

var tracer = otel.Tracer("appstore/internal/service")

// AppMetadata is the raw listing form. Optional fields fall back to defaults when empty or unparsable.
type AppMetadata struct {
	Title       string
	Description string
	Category    string
	Version     string
	IsFree      string
	Price       string
}

// ListParams filters and pages the public catalog.
type ListParams struct {
	Limit    int
	Offset   int
	Category string
}

// ApplicationListResult is the service-level DTO for paginated listings.
type ApplicationListResult struct {
	Items []model.ApplicationSummary `json:"data"`
	Total int                        `json:"total"`
}

// ApplicationService defines the catalog use cases.
type ApplicationService interface {
	// Upload validates metadata, stores the asset files and saves the listing. Assets are removed
	// again if the listing cannot be saved.
	Upload(ctx context.Context, developerID string, meta AppMetadata, files AssetFiles) (*model.Application, error)

	// Create saves a listing that references already stored assets.
	Create(ctx context.Context, developerID string, meta AppMetadata, assets AssetPaths) (*model.Application, error)

	// List returns summaries, newest first, with a total count.
	List(ctx context.Context, p ListParams) (*ApplicationListResult, error)

	// Get returns one listing with its downloads.
	Get(ctx context.Context, id string) (*model.Application, error)

	// ListForDeveloper returns every listing owned by developerID with its downloads.
	ListForDeveloper(ctx context.Context, developerID string) ([]model.Application, error)

	// Delete removes a listing owned by requesterID, then its asset folder.
	Delete(ctx context.Context, id, requesterID string) error

	// DeveloperStats aggregates listings, downloads and earnings of a developer.
	DeveloperStats(ctx context.Context, developerID string) (*model.DeveloperStats, error)
}

type applicationService struct {
	apps      repository.ApplicationRepository
	downloads repository.DownloadRepository
	store     storage.Storage
	intake    *assetIntake
	metrics   *Metrics
	log       logrus.FieldLogger
}

// NewApplicationService constructs an ApplicationService.
func NewApplicationService(
	apps repository.ApplicationRepository,
	downloads repository.DownloadRepository,
	store storage.Storage,
	limits IntakeLimits,
	metrics *Metrics,
	log logrus.FieldLogger,
) ApplicationService {
	log = log.WithField("component", "catalog")
	return &applicationService{
		apps:      apps,
		downloads: downloads,
		store:     store,
		intake:    newAssetIntake(store, limits, log),
		metrics:   metrics,
		log:       log,
	}
}

func (s *applicationService) Upload(ctx context.Context, developerID string, meta AppMetadata, files AssetFiles) (_ *model.Application, err error) {
	ctx, span := tracer.Start(ctx, "ApplicationService.Upload", trace.WithAttributes(
		attribute.String("app.title", meta.Title),
		attribute.Int("app.screenshots", len(files.Screenshots)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upload failed")
			s.metrics.upload(uploadResult(err), 0)
		}
		span.End()
	}()

	app, err := buildApplication(developerID, meta)
	if err != nil {
		return nil, err
	}

	if _, err := s.apps.FindByTitle(ctx, app.Title); err == nil {
		return nil, fmt.Errorf("%w: title %q is already taken", ErrConflict, app.Title)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup title: %w", err)
	}

	paths, written, err := s.intake.Store(ctx, app.Title, files)
	if err != nil {
		return nil, err
	}
	app.IconURL, app.APKURL, app.Screenshots = paths.IconURL, paths.APKURL, paths.Screenshots

	created, err := s.save(ctx, app)
	if err != nil {
		s.log.WithError(err).WithField("title", app.Title).Warn("listing not saved, removing stored assets")
		s.intake.Remove(written)
		return nil, err
	}

	s.metrics.upload("ok", files.totalSize())
	s.log.WithFields(logrus.Fields{
		"app_id":       created.ID,
		"title":        created.Title,
		"developer_id": developerID,
		"assets":       len(written),
	}).Info("application uploaded")
	return created, nil
}

func (s *applicationService) Create(ctx context.Context, developerID string, meta AppMetadata, assets AssetPaths) (*model.Application, error) {
	app, err := buildApplication(developerID, meta)
	if err != nil {
		return nil, err
	}
	app.IconURL, app.APKURL = assets.IconURL, assets.APKURL
	if assets.Screenshots != nil {
		app.Screenshots = assets.Screenshots
	}
	return s.save(ctx, app)
}

func (s *applicationService) save(ctx context.Context, app *model.Application) (*model.Application, error) {
	created, err := s.apps.Create(ctx, app)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: title %q is already taken", ErrConflict, app.Title)
		}
		return nil, fmt.Errorf("save application: %w", err)
	}
	return created, nil
}

func (s *applicationService) List(ctx context.Context, p ListParams) (*ApplicationListResult, error) {
	if p.Limit <= 0 {
		p.Limit = defaultListLimit
	}
	if p.Limit > maxListLimit {
		p.Limit = maxListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	res, err := s.apps.List(ctx, repository.ListQuery{
		PageQuery: repository.PageQuery{Limit: p.Limit, Offset: p.Offset},
		Category:  strings.TrimSpace(p.Category),
	})
	if err != nil {
		return nil, err
	}
	items := res.Items
	if items == nil {
		items = []model.ApplicationSummary{}
	}
	return &ApplicationListResult{Items: items, Total: res.Total}, nil
}

func (s *applicationService) Get(ctx context.Context, id string) (*model.Application, error) {
	app, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	downloads, err := s.downloads.ListByApp(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	app.Downloads = downloads
	return app, nil
}

func (s *applicationService) ListForDeveloper(ctx context.Context, developerID string) ([]model.Application, error) {
	apps, err := s.apps.ListByDeveloper(ctx, developerID)
	if err != nil {
		return nil, err
	}
	downloads, err := s.downloads.ListByDeveloper(ctx, developerID)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}

	byApp := make(map[string][]model.Download, len(apps))
	for _, d := range downloads {
		byApp[d.AppID] = append(byApp[d.AppID], d)
	}
	for i := range apps {
		apps[i].Downloads = byApp[apps[i].ID]
	}
	if apps == nil {
		apps = []model.Application{}
	}
	return apps, nil
}

// Delete removes the row before the folder so a failed folder removal never leaves a listing
// pointing at missing files.
func (s *applicationService) Delete(ctx context.Context, id, requesterID string) error {
	app, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if app.DeveloperID != requesterID {
		return fmt.Errorf("%w: only the developer can delete this application", ErrForbidden)
	}

	if err := s.apps.Delete(ctx, app.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: application not found", ErrNotFound)
		}
		return fmt.Errorf("delete application: %w", err)
	}
	s.metrics.deleted()

	logCtx := s.log.WithFields(logrus.Fields{"app_id": app.ID, "title": app.Title})
	if seg, err := storage.SafeSegment(app.Title); err == nil {
		if err := s.store.DeletePrefix(ctx, storage.AppKey(seg)); err != nil {
			logCtx.WithError(err).Error("asset folder removal failed")
		}
	} else {
		logCtx.WithError(err).Warn("stored title is not a safe folder name, assets left in place")
	}
	logCtx.Info("application deleted")
	return nil
}

func (s *applicationService) DeveloperStats(ctx context.Context, developerID string) (*model.DeveloperStats, error) {
	apps, err := s.apps.ListByDeveloper(ctx, developerID)
	if err != nil {
		return nil, err
	}
	stats := &model.DeveloperStats{TotalApps: len(apps)}
	var earnings float64
	for _, a := range apps {
		stats.TotalDownloads += a.DownloadCount
		if !a.IsFree {
			earnings += a.Price * float64(a.DownloadCount)
		}
	}
	stats.TotalEarnings = math.Round(earnings*100) / 100
	return stats, nil
}

func (s *applicationService) find(ctx context.Context, id string) (*model.Application, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: application not found", ErrNotFound)
	}
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: application not found", ErrNotFound)
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return app, nil
}

// buildApplication validates the form and applies defaults.
func buildApplication(developerID string, meta AppMetadata) (*model.Application, error) {
	if developerID == "" {
		return nil, fmt.Errorf("%w: developer identity required", ErrUnauthorized)
	}
	if strings.TrimSpace(meta.Title) == "" {
		return nil, invalid("title", "is required")
	}
	title, err := storage.SafeSegment(meta.Title)
	if err != nil {
		return nil, invalid("title", strings.TrimPrefix(err.Error(), storage.ErrUnsafeName.Error()+": "))
	}

	app := &model.Application{
		ID:          uuid.New().String(),
		Title:       title,
		Description: strings.TrimSpace(meta.Description),
		Category:    strings.TrimSpace(meta.Category),
		Version:     strings.TrimSpace(meta.Version),
		IsFree:      true,
		Screenshots: []string{},
		DeveloperID: developerID,
		CreatedAt:   time.Now().UTC(),
	}
	if app.Version == "" {
		app.Version = model.DefaultVersion
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(meta.IsFree)); err == nil {
		app.IsFree = b
	}
	if price, err := strconv.ParseFloat(strings.TrimSpace(meta.Price), 64); err == nil {
		switch {
		case math.IsNaN(price) || math.IsInf(price, 0):
			return nil, invalid("price", "must be a finite number")
		case price < 0:
			return nil, invalid("price", "must not be negative")
		}
		app.Price = math.Round(price*100) / 100
	}
	return app, nil
}

func uploadResult(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func (f AssetFiles) totalSize() int64 {
	var n int64
	if f.Package != nil {
		n += f.Package.Size
	}
	if f.Icon != nil {
		n += f.Icon.Size
	}
	for _, s := range f.Screenshots {
		n += s.Size
	}
	return n
}
