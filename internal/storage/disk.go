package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Usage is the on-disk footprint of the application's data.
type Usage struct {
	RecordsBytes int64 `json:"records_bytes"`
	UploadsBytes int64 `json:"uploads_bytes"`
	UploadFiles  int   `json:"upload_files"`
}

// Total returns the combined size in bytes.
func (u Usage) Total() int64 { return u.RecordsBytes + u.UploadsBytes }

// MeasureUsage sums the store's files and the regular files under uploadDir.
// Missing paths count as empty.
func MeasureUsage(s *Store, uploadDir string) (Usage, error) {
	var u Usage
	for _, p := range s.Paths() {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Usage{}, err
		}
		u.RecordsBytes += info.Size()
	}
	if uploadDir == "" {
		return u, nil
	}
	err := filepath.WalkDir(uploadDir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		u.UploadsBytes += info.Size()
		u.UploadFiles++
		return nil
	})
	if err != nil {
		return Usage{}, err
	}
	return u, nil
}
