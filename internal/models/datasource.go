package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DataSourceType names the kind of data source a record describes.
type DataSourceType string

const (
	TypePostgreSQL DataSourceType = "postgresql"
	TypeMySQL      DataSourceType = "mysql"
	TypeMongoDB    DataSourceType = "mongodb"
	TypeCSV        DataSourceType = "csv"
	TypeAPI        DataSourceType = "api"
)

// DataSourceTypes lists every supported type in display order.
var DataSourceTypes = []DataSourceType{TypePostgreSQL, TypeMySQL, TypeMongoDB, TypeCSV, TypeAPI}

// Valid reports whether t is one of the supported types.
func (t DataSourceType) Valid() bool {
	for _, k := range DataSourceTypes {
		if t == k {
			return true
		}
	}
	return false
}

// SourceConfig is the type-dependent payload of a DataSource.
type SourceConfig interface {
	// AppliesTo reports whether the payload is the variant for t.
	AppliesTo(t DataSourceType) bool
}

// CSVConfig locates an uploaded CSV file.
type CSVConfig struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName,omitempty"`
	Path         string `json:"path,omitempty"`
	Checksum     string `json:"checksum,omitempty"`
	SizeBytes    int64  `json:"size,omitempty"`
}

func (CSVConfig) AppliesTo(t DataSourceType) bool { return t == TypeCSV }

// SQLConfig holds connection details for postgresql and mysql sources.
// The values are stored as given and never used to dial.
type SQLConfig struct {
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Database string `json:"database,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	SSLMode  string `json:"sslMode,omitempty"`
}

func (SQLConfig) AppliesTo(t DataSourceType) bool { return t == TypePostgreSQL || t == TypeMySQL }

// UnmarshalJSON accepts the legacy "hostname" key.
func (c *SQLConfig) UnmarshalJSON(b []byte) error {
	type plain SQLConfig
	var aux struct {
		plain
		Hostname string `json:"hostname"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*c = SQLConfig(aux.plain)
	if c.Host == "" {
		c.Host = aux.Hostname
	}
	return nil
}

// MongoConfig holds a MongoDB connection string.
type MongoConfig struct {
	URI      string `json:"uri,omitempty"`
	Database string `json:"database,omitempty"`
}

func (MongoConfig) AppliesTo(t DataSourceType) bool { return t == TypeMongoDB }

// APIConfig describes an HTTP data endpoint.
type APIConfig struct {
	Endpoint string            `json:"endpoint,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

func (APIConfig) AppliesTo(t DataSourceType) bool { return t == TypeAPI }

// RawConfig keeps the payload of a record whose type is not recognised.
type RawConfig json.RawMessage

func (RawConfig) AppliesTo(DataSourceType) bool { return false }

func (r RawConfig) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return json.RawMessage(r).MarshalJSON()
}

// DecodeConfig decodes raw into the config variant selected by t.
// An empty or null payload yields the zero value of the variant.
func DecodeConfig(t DataSourceType, raw json.RawMessage) (SourceConfig, error) {
	empty := len(raw) == 0 || string(raw) == "null"
	var target SourceConfig
	switch t {
	case TypeCSV:
		var c CSVConfig
		if !empty {
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, fmt.Errorf("decode csv config: %w", err)
			}
		}
		target = c
	case TypePostgreSQL, TypeMySQL:
		var c SQLConfig
		if !empty {
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, fmt.Errorf("decode %s config: %w", t, err)
			}
		}
		target = c
	case TypeMongoDB:
		var c MongoConfig
		if !empty {
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, fmt.Errorf("decode mongodb config: %w", err)
			}
		}
		target = c
	case TypeAPI:
		var c APIConfig
		if !empty {
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, fmt.Errorf("decode api config: %w", err)
			}
		}
		target = c
	default:
		target = RawConfig(append([]byte(nil), raw...))
	}
	return target, nil
}

// DataSource is a registered data source.
type DataSource struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      DataSourceType `json:"type"`
	Config    SourceConfig   `json:"config"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type dataSourceJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      DataSourceType  `json:"type"`
	Config    json.RawMessage `json:"config"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// UnmarshalJSON decodes the config using the record's type tag.
func (d *DataSource) UnmarshalJSON(b []byte) error {
	var aux dataSourceJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	cfg, err := DecodeConfig(aux.Type, aux.Config)
	if err != nil {
		return err
	}
	*d = DataSource{
		ID:        aux.ID,
		Name:      aux.Name,
		Type:      aux.Type,
		Config:    cfg,
		CreatedAt: aux.CreatedAt,
		UpdatedAt: aux.UpdatedAt,
	}
	return nil
}

// CSV returns the CSV payload when the source is a CSV file.
func (d *DataSource) CSV() (CSVConfig, bool) {
	if d.Type != TypeCSV {
		return CSVConfig{}, false
	}
	c, ok := d.Config.(CSVConfig)
	return c, ok
}

func (d *DataSource) RecordID() string { return d.ID }

func (d *DataSource) Init(id string, now time.Time) {
	d.ID = id
	d.CreatedAt = now
	d.UpdatedAt = now
}

func (d *DataSource) Touch(now time.Time) {
	d.UpdatedAt = nextUpdate(d.UpdatedAt, now)
}

// DataSourceInput is the body of a create request.
type DataSourceInput struct {
	Name   string          `json:"name" validate:"required"`
	Type   DataSourceType  `json:"type" validate:"required,oneof=postgresql mysql mongodb csv api"`
	Config json.RawMessage `json:"config,omitempty"`
}

// DataSourcePatch is a partial update. Absent fields are left unchanged;
// a present config replaces the stored one wholesale.
type DataSourcePatch struct {
	Name   *string          `json:"name,omitempty" validate:"omitempty,min=1"`
	Type   *DataSourceType  `json:"type,omitempty" validate:"omitempty,oneof=postgresql mysql mongodb csv api"`
	Config *json.RawMessage `json:"config,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p DataSourcePatch) Empty() bool {
	return p.Name == nil && p.Type == nil && p.Config == nil
}
