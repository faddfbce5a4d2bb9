// Package modules validates a requested module selection against the
// catalogue a resolved source tree declares and turns it into a toolchain
// feature configuration.
package modules

import (
	"fmt"
	"sort"

	"github.com/ferronweb/ferron-forge/internal/forgeerrors"
	"github.com/ferronweb/ferron-forge/internal/util/sets"
)

// featureNamespace prefixes module names when passed to the toolchain, so a
// workspace build enables the feature on the ferron crate specifically.
const featureNamespace = "ferron"

// BuildConfiguration is the toolchain-level translation of a module
// selection. It is a pure function of its inputs: the same module set
// always yields the same flag sequence regardless of request order.
type BuildConfiguration struct {
	// Modules is the effective module set, sorted.
	Modules []string
	// FeatureFlags is the namespaced flag sequence handed to the
	// toolchain, sorted to keep builds reproducible.
	FeatureFlags []string
	// TargetTriple is the cross-compilation target, empty for a host build.
	TargetTriple string
	// DefaultSelection marks that the caller requested no modules and the
	// tree's declared default set is in effect.
	DefaultSelection bool
}

// Select validates requested against available and builds a configuration.
// Every unknown module is reported in a single error so the caller can
// correct the whole selection in one pass. An empty request selects the
// source tree's declared default module set.
func Select(requested, available, defaults []string, targetTriple string) (*BuildConfiguration, error) {
	if len(requested) == 0 {
		return &BuildConfiguration{
			Modules:          sortedCopy(defaults),
			FeatureFlags:     namespaced(defaults),
			TargetTriple:     targetTriple,
			DefaultSelection: true,
		}, nil
	}

	availableSet := sets.New(available...)

	var unknown []string
	seen := sets.New[string]()
	var selected []string
	for _, name := range requested {
		if !availableSet.Has(name) {
			unknown = append(unknown, name)
			continue
		}
		if seen.Has(name) {
			continue
		}
		seen.Add(name)
		selected = append(selected, name)
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, forgeerrors.UnknownModules(unknown)
	}

	return &BuildConfiguration{
		Modules:      sortedCopy(selected),
		FeatureFlags: namespaced(selected),
		TargetTriple: targetTriple,
	}, nil
}

func sortedCopy(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.Strings(out)
	return out
}

func namespaced(names []string) []string {
	flags := make([]string, 0, len(names))
	for _, name := range sortedCopy(names) {
		flags = append(flags, fmt.Sprintf("%s/%s", featureNamespace, name))
	}
	return flags
}
