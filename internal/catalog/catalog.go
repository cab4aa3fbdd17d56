// Package catalog manages registered data sources and the CSV files behind them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/hyperjump/chatdata/internal/apperrors"
	"github.com/hyperjump/chatdata/internal/ingest"
	"github.com/hyperjump/chatdata/internal/models"
	"github.com/hyperjump/chatdata/internal/storage"
)

// Options tunes the service.
type Options struct {
	DefaultPreviewRows int
	MaxPreviewRows     int
	PreviewCacheTTL    time.Duration
}

// Service is the data source registry.
type Service struct {
	store    *storage.Store
	loader   *ingest.Loader
	uploader *ingest.Uploader
	validate *validator.Validate
	previews *cache.Cache
	opts     Options
	logger   *zap.Logger
}

// New creates a catalog service.
func New(store *storage.Store, uploader *ingest.Uploader, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultPreviewRows <= 0 {
		opts.DefaultPreviewRows = ingest.DefaultPreviewRows
	}
	if opts.MaxPreviewRows <= 0 {
		opts.MaxPreviewRows = 1000
	}
	if opts.PreviewCacheTTL <= 0 {
		opts.PreviewCacheTTL = 5 * time.Minute
	}
	return &Service{
		store:    store,
		loader:   ingest.NewLoader(logger),
		uploader: uploader,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		previews: cache.New(opts.PreviewCacheTTL, 2*opts.PreviewCacheTTL),
		opts:     opts,
		logger:   logger.Named("catalog"),
	}
}

// List returns every data source in insertion order.
func (s *Service) List(ctx context.Context) ([]*models.DataSource, error) {
	return s.store.DataSources.List(ctx)
}

// Get returns one data source.
func (s *Service) Get(ctx context.Context, id string) (*models.DataSource, error) {
	return s.store.DataSources.Get(ctx, id)
}

// Create validates input and stores a new data source.
func (s *Service) Create(ctx context.Context, in models.DataSourceInput) (*models.DataSource, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	cfg, err := models.DecodeConfig(in.Type, in.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}
	ds, err := s.store.DataSources.Create(ctx, &models.DataSource{
		Name:   in.Name,
		Type:   in.Type,
		Config: cfg,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Created data source", zap.String("id", ds.ID), zap.String("type", string(ds.Type)))
	return ds, nil
}

// Patch applies a partial update. Changing the type without supplying a
// new config is rejected, since the stored config belongs to the old type.
func (s *Service) Patch(ctx context.Context, id string, p models.DataSourcePatch) (*models.DataSource, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be blank", apperrors.ErrValidation)
		}
		p.Name = &name
	}
	if err := s.validate.Struct(p); err != nil {
		return nil, validationError(err)
	}
	return s.store.DataSources.Update(ctx, id, func(ds *models.DataSource) error {
		typ := ds.Type
		if p.Type != nil {
			typ = *p.Type
		}
		switch {
		case p.Config != nil:
			cfg, err := models.DecodeConfig(typ, *p.Config)
			if err != nil {
				return fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
			}
			ds.Config = cfg
		case typ != ds.Type:
			if ds.Config != nil && !ds.Config.AppliesTo(typ) {
				return fmt.Errorf("%w: changing type to %s requires a new config", apperrors.ErrValidation, typ)
			}
		}
		if p.Name != nil {
			ds.Name = *p.Name
		}
		ds.Type = typ
		return nil
	})
}

// Delete removes a data source. Uploaded files are kept on disk and query
// logs that reference the source are left untouched.
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.store.DataSources.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("data source %s: %w", id, apperrors.ErrNotFound)
	}
	s.logger.Info("Deleted data source", zap.String("id", id))
	return nil
}

// Preview returns the source together with the header and first rows of its
// CSV file. limit <= 0 selects the default; larger values are capped.
func (s *Service) Preview(ctx context.Context, id string, limit int) (*models.CsvPreview, error) {
	if limit <= 0 {
		limit = s.opts.DefaultPreviewRows
	}
	if limit > s.opts.MaxPreviewRows {
		limit = s.opts.MaxPreviewRows
	}
	ds, cfg, err := s.csvSource(ctx, id)
	if err != nil {
		return nil, err
	}
	path := s.filePath(cfg)
	key := previewKey(path, cfg.Checksum, limit)
	if v, found := s.previews.Get(key); found {
		return &models.CsvPreview{DataSource: ds, Preview: v.(*models.Table)}, nil
	}
	table := s.loader.PreviewFile(path, limit)
	s.previews.Set(key, table, cache.DefaultExpiration)
	return &models.CsvPreview{DataSource: ds, Preview: table}, nil
}

// Data returns the fully parsed CSV file of a source.
func (s *Service) Data(ctx context.Context, id string) (*models.CsvPreview, error) {
	ds, cfg, err := s.csvSource(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.CsvPreview{DataSource: ds, Preview: s.loader.ParseFile(s.filePath(cfg))}, nil
}

// Upload stores a CSV file and registers it as a data source. If the record
// cannot be created the stored file is removed again.
func (s *Service) Upload(ctx context.Context, name, filename, contentType string, r io.Reader) (*models.DataSource, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: uploads are not configured", apperrors.ErrConfiguration)
	}
	if err := ingest.CheckUpload(filename, contentType); err != nil {
		return nil, err
	}
	cfg, err := s.uploader.Save(filename, r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = filename
	}
	ds, err := s.store.DataSources.Create(ctx, &models.DataSource{
		Name:   strings.TrimSpace(name),
		Type:   models.TypeCSV,
		Config: cfg,
	})
	if err != nil {
		if rmErr := s.uploader.Remove(cfg); rmErr != nil {
			s.logger.Warn("Failed to remove orphaned upload", zap.String("path", cfg.Path), zap.Error(rmErr))
		}
		return nil, err
	}
	s.logger.Info("Uploaded CSV data source",
		zap.String("id", ds.ID),
		zap.String("file", cfg.Filename),
		zap.Int64("bytes", cfg.SizeBytes))
	return ds, nil
}

// InvalidatePath drops cached previews of the file at path.
func (s *Service) InvalidatePath(path string) int {
	prefix := filepath.Clean(path) + "|"
	n := 0
	for key := range s.previews.Items() {
		if strings.HasPrefix(key, prefix) {
			s.previews.Delete(key)
			n++
		}
	}
	if n > 0 {
		s.logger.Debug("Invalidated previews", zap.String("path", path), zap.Int("entries", n))
	}
	return n
}

// CachedPreviews returns the number of cached preview tables.
func (s *Service) CachedPreviews() int {
	return s.previews.ItemCount()
}

func (s *Service) csvSource(ctx context.Context, id string) (*models.DataSource, models.CSVConfig, error) {
	ds, err := s.store.DataSources.Get(ctx, id)
	if err != nil {
		return nil, models.CSVConfig{}, err
	}
	cfg, ok := ds.CSV()
	if !ok {
		return nil, models.CSVConfig{}, fmt.Errorf("%w: data source %s is not a CSV file", apperrors.ErrValidation, id)
	}
	return ds, cfg, nil
}

// filePath resolves the stored file. Records that only carry a filename are
// looked up in the upload directory.
func (s *Service) filePath(cfg models.CSVConfig) string {
	if cfg.Path != "" {
		return filepath.Clean(cfg.Path)
	}
	if s.uploader != nil && cfg.Filename != "" {
		return filepath.Join(s.uploader.Dir(), filepath.Base(cfg.Filename))
	}
	return filepath.Clean(cfg.Filename)
}

func previewKey(path, checksum string, limit int) string {
	return fmt.Sprintf("%s|%s|%d", path, checksum, limit)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", strings.ToLower(fe.Field()), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field())))
		}
	}
	return fmt.Errorf("%w: %s", apperrors.ErrValidation, strings.Join(msgs, "; "))
}
