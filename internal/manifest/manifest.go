// Package manifest defines the archive metadata consumed by the Ferron
// installer. The entry name and field set are a compatibility contract;
// changing either requires bumping SchemaVersion.
package manifest

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// EntryName is the fixed path of the manifest inside the output archive.
const EntryName = "forge-manifest.json"

// SchemaVersion identifies the manifest layout for installer compatibility.
const SchemaVersion = 1

// ArchiveManifest describes the contents of a packaged archive.
type ArchiveManifest struct {
	SchemaVersion  int       `json:"schema_version"`
	FerronVersion  string    `json:"ferron_version"`
	TargetTriple   string    `json:"target_triple"`
	Modules        []string  `json:"modules"`
	BuildTimestamp time.Time `json:"build_timestamp"`
}

// New constructs a manifest with modules sorted for reproducible output.
func New(ferronVersion, targetTriple string, modules []string, buildTime time.Time) *ArchiveManifest {
	sorted := make([]string, len(modules))
	copy(sorted, modules)
	sort.Strings(sorted)

	return &ArchiveManifest{
		SchemaVersion:  SchemaVersion,
		FerronVersion:  ferronVersion,
		TargetTriple:   targetTriple,
		Modules:        sorted,
		BuildTimestamp: buildTime.UTC(),
	}
}

// ToJSON serializes the manifest to JSON.
func (m *ArchiveManifest) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a manifest from JSON.
func FromJSON(data []byte) (*ArchiveManifest, error) {
	var m ArchiveManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}
