package ingest

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/hyperjump/chatdata/internal/apperrors"
	"github.com/hyperjump/chatdata/internal/models"
)

// ErrTooLarge is returned when an upload exceeds the configured size limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

var csvContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"text/plain":               true,
	"application/vnd.ms-excel": true,
	"application/octet-stream": true,
}

// CheckUpload rejects files that are not CSV by extension or declared content type.
// An empty content type is accepted.
func CheckUpload(filename, contentType string) error {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return fmt.Errorf("%w: only .csv files are accepted, got %q", apperrors.ErrValidation, filename)
	}
	if contentType == "" {
		return nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || !csvContentTypes[mt] {
		return fmt.Errorf("%w: unsupported content type %q", apperrors.ErrValidation, contentType)
	}
	return nil
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithLogger sets the logger for the uploader.
func WithLogger(logger *zap.Logger) UploaderOption {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// WithClock overrides the clock used for the filename prefix.
func WithClock(now func() time.Time) UploaderOption {
	return func(u *Uploader) {
		u.now = now
	}
}

// Uploader stores uploaded files in a directory under a millisecond
// timestamp prefix.
type Uploader struct {
	dir      string
	maxBytes int64
	now      func() time.Time
	logger   *zap.Logger
}

// NewUploader returns an Uploader writing into dir. A maxBytes of zero or
// less disables the size limit.
func NewUploader(dir string, maxBytes int64, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		dir:      dir,
		maxBytes: maxBytes,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.logger = u.logger.Named("upload")
	return u
}

// Dir returns the upload directory.
func (u *Uploader) Dir() string { return u.dir }

// Save writes r to the upload directory and returns the CSV config describing
// the stored file. On failure nothing is left on disk.
func (u *Uploader) Save(originalName string, r io.Reader) (models.CSVConfig, error) {
	if err := os.MkdirAll(u.dir, 0755); err != nil {
		return models.CSVConfig{}, fmt.Errorf("%w: create upload directory: %w", apperrors.ErrStorageUnavailable, err)
	}

	filename := fmt.Sprintf("%d-%s", u.now().UnixMilli(), SanitizeFilename(originalName))
	dest := filepath.Join(u.dir, filename)

	tmp, err := os.CreateTemp(u.dir, ".upload-*")
	if err != nil {
		return models.CSVConfig{}, fmt.Errorf("%w: create temp file: %w", apperrors.ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	src := r
	if u.maxBytes > 0 {
		src = io.LimitReader(r, u.maxBytes+1)
	}
	hasher := xxh3.New()
	n, err := io.Copy(io.MultiWriter(tmp, hasher), src)
	if err != nil {
		cleanup()
		return models.CSVConfig{}, fmt.Errorf("%w: write upload: %w", apperrors.ErrStorageUnavailable, err)
	}
	if u.maxBytes > 0 && n > u.maxBytes {
		cleanup()
		return models.CSVConfig{}, fmt.Errorf("%w: %w (%d bytes)", apperrors.ErrValidation, ErrTooLarge, u.maxBytes)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return models.CSVConfig{}, fmt.Errorf("%w: sync upload: %w", apperrors.ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return models.CSVConfig{}, fmt.Errorf("%w: close upload: %w", apperrors.ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return models.CSVConfig{}, fmt.Errorf("%w: store upload: %w", apperrors.ErrStorageUnavailable, err)
	}

	cfg := models.CSVConfig{
		Filename:     filename,
		OriginalName: originalName,
		Path:         dest,
		Checksum:     fmt.Sprintf("%016x", hasher.Sum64()),
		SizeBytes:    n,
	}
	u.logger.Debug("Stored upload", zap.String("path", dest), zap.Int64("bytes", n), zap.String("checksum", cfg.Checksum))
	return cfg, nil
}

// Remove deletes a previously saved file. A missing file is not an error.
func (u *Uploader) Remove(cfg models.CSVConfig) error {
	if cfg.Path == "" {
		return nil
	}
	if err := os.Remove(cfg.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Checksum returns the xxh3 checksum of data in the format stored in CSVConfig.
func Checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

// SanitizeFilename reduces name to its base and replaces characters outside
// [A-Za-z0-9._-] with underscores.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "upload.csv"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "upload.csv"
	}
	return out
}
