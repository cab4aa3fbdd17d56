// Package models defines the persisted entities (data sources, query logs) and the
// tabular shapes exchanged by the ingestion and rendering layers.
package models

import "time"

// Record is implemented by every entity kept in a storage collection.
// The store assigns the id and timestamps; callers never set them.
type Record interface {
	RecordID() string
	// Init stamps a freshly created record.
	Init(id string, now time.Time)
	// Touch marks a successful mutation.
	Touch(now time.Time)
}

// nextUpdate returns a timestamp strictly after prev, preferring now.
func nextUpdate(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Nanosecond)
}
