package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/ferronweb/ferron-forge/internal/util/sets"
)

// ferronPackage is the crate whose features are exposed as server modules.
const ferronPackage = "ferron"

// cargoManifest is the subset of a Cargo.toml this tool cares about.
type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Workspace struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
	Features map[string][]string `toml:"features"`
}

// ReadModuleCatalogue reads the module set a checked-out source tree
// declares. Modules are the feature names of the ferron crate, and the
// default set is the crate's "default" feature expanded transitively.
// Nothing is hard-coded: each revision carries its own catalogue.
func ReadModuleCatalogue(treePath string) (available, defaults []string, err error) {
	root, err := loadCargoManifest(filepath.Join(treePath, "Cargo.toml"))
	if err != nil {
		return nil, nil, err
	}

	m := root
	if m.Features == nil || m.Package.Name != ferronPackage {
		if member := findFerronMember(treePath, root); member != nil {
			m = member
		}
	}

	if m.Features == nil {
		return nil, nil, fmt.Errorf("source tree at %s declares no feature table", treePath)
	}

	for name := range m.Features {
		if name == "default" {
			continue
		}
		available = append(available, name)
	}
	sort.Strings(available)

	defaults = expandDefaultFeatures(m.Features)
	return available, defaults, nil
}

// findFerronMember scans workspace members for the ferron crate manifest.
func findFerronMember(treePath string, root *cargoManifest) *cargoManifest {
	members := root.Workspace.Members
	if len(members) == 0 {
		return nil
	}

	for _, member := range members {
		// Glob members ("crates/*") expand to their matching directories.
		pattern := filepath.Join(treePath, filepath.FromSlash(member), "Cargo.toml")
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, match := range matches {
			m, err := loadCargoManifest(match)
			if err != nil {
				continue
			}
			if m.Package.Name == ferronPackage {
				return m
			}
		}
	}
	return nil
}

// expandDefaultFeatures resolves the "default" feature transitively into the
// concrete module names it enables. Dependency activations ("dep:x",
// "crate/feature") are not modules and are skipped.
func expandDefaultFeatures(features map[string][]string) []string {
	seen := sets.New[string]()
	var walk func(name string)
	walk = func(name string) {
		for _, entry := range features[name] {
			if strings.HasPrefix(entry, "dep:") || strings.Contains(entry, "/") {
				continue
			}
			if _, isFeature := features[entry]; !isFeature {
				continue
			}
			if seen.Has(entry) {
				continue
			}
			seen.Add(entry)
			walk(entry)
		}
	}
	walk("default")

	defaults := make([]string, 0, len(seen))
	for name := range seen {
		defaults = append(defaults, name)
	}
	sort.Strings(defaults)
	return defaults
}

func sortedCopy(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.Strings(out)
	return out
}

// loadCargoManifest parses a single Cargo.toml.
func loadCargoManifest(path string) (*cargoManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var m cargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &m, nil
}
