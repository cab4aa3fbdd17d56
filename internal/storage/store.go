package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hyperjump/chatdata/internal/models"
)

// Backend names a storage implementation.
type Backend string

const (
	BackendJSON   Backend = "json"
	BackendSQLite Backend = "sqlite"
	BackendBolt   Backend = "bolt"
)

const (
	dataSourcesFile = "datasources.json"
	queriesFile     = "queries.json"
)

// Options selects and locates the storage backend.
type Options struct {
	Backend Backend
	// DataDir holds the JSON collection files.
	DataDir string
	// DatabasePath is the SQLite file used by the sqlite backend.
	DatabasePath string
	// BoltPath is the bbolt file used by the bolt backend.
	BoltPath string
}

// Store bundles the collections used by the application.
type Store struct {
	DataSources Collection[models.DataSource]
	QueryLogs   Collection[models.QueryLog]

	backend Backend
	paths   []string
	closeFn func() error
}

// Open opens the configured backend.
func Open(opts Options, copts ...CollectionOption) (*Store, error) {
	switch opts.Backend {
	case BackendJSON, "":
		return OpenJSON(opts.DataDir, copts...)
	case BackendSQLite:
		return OpenSQLiteStore(opts.DatabasePath, copts...)
	case BackendBolt:
		return OpenBoltStore(opts.BoltPath, copts...)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", opts.Backend)
	}
}

// OpenJSON returns a store keeping each collection as a JSON file in dataDir.
func OpenJSON(dataDir string, copts ...CollectionOption) (*Store, error) {
	ds, err := NewJSONCollection[models.DataSource](filepath.Join(dataDir, dataSourcesFile), copts...)
	if err != nil {
		return nil, err
	}
	qs, err := NewJSONCollection[models.QueryLog](filepath.Join(dataDir, queriesFile), copts...)
	if err != nil {
		return nil, err
	}
	return &Store{
		DataSources: ds,
		QueryLogs:   qs,
		backend:     BackendJSON,
		paths:       []string{ds.Path(), qs.Path()},
		closeFn:     func() error { return nil },
	}, nil
}

// OpenSQLiteStore returns a store keeping both collections in one SQLite database.
func OpenSQLiteStore(dbPath string, copts ...CollectionOption) (*Store, error) {
	db, err := OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{
		DataSources: NewSQLiteCollection[models.DataSource](db, "datasources", copts...),
		QueryLogs:   NewSQLiteCollection[models.QueryLog](db, "queries", copts...),
		backend:     BackendSQLite,
		paths:       []string{dbPath, dbPath + "-wal", dbPath + "-shm"},
		closeFn:     db.Close,
	}, nil
}

// OpenBoltStore returns a store keeping both collections in one bbolt file.
func OpenBoltStore(path string, copts ...CollectionOption) (*Store, error) {
	db, err := OpenBolt(path)
	if err != nil {
		return nil, err
	}
	ds, err := NewBoltCollection[models.DataSource](db, "datasources", copts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	qs, err := NewBoltCollection[models.QueryLog](db, "queries", copts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{
		DataSources: ds,
		QueryLogs:   qs,
		backend:     BackendBolt,
		paths:       []string{path},
		closeFn:     db.Close,
	}, nil
}

// Backend reports which backend the store uses.
func (s *Store) Backend() Backend { return s.backend }

// Paths returns the files the store writes to.
func (s *Store) Paths() []string { return s.paths }

// Close releases the backend.
func (s *Store) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// SampleDataSources returns the data sources installed into an empty store
// when seeding is enabled.
func SampleDataSources() []models.DataSource {
	return []models.DataSource{
		{Name: "Sample PostgreSQL DB", Type: models.TypePostgreSQL, Config: models.SQLConfig{Host: "localhost", Port: 5432}},
		{Name: "Sales Data (CSV)", Type: models.TypeCSV, Config: models.CSVConfig{Filename: "sales_2023.csv"}},
		{Name: "Weather API", Type: models.TypeAPI, Config: models.APIConfig{Endpoint: "https://api.weather.com"}},
	}
}

// Seed inserts the sample data sources when the collection is empty.
// It returns the number of records created.
func Seed(ctx context.Context, s *Store) (int, error) {
	n, err := s.DataSources.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	samples := SampleDataSources()
	for i := range samples {
		if _, err := s.DataSources.Create(ctx, &samples[i]); err != nil {
			return i, fmt.Errorf("seed %q: %w", samples[i].Name, err)
		}
	}
	return len(samples), nil
}
