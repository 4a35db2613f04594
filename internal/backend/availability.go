package backend

import (
	"slices"
	"strings"
)

// Available returns a comma-separated list of registered build variants.
func Available() string {
	var entries []string
	for _, impl := range Implementations() {
		if !slices.Contains(entries, impl.BuildVariant) {
			entries = append(entries, impl.BuildVariant)
		}
	}
	return strings.Join(entries, ",")
}

// Has reports whether an implementation of variant is registered.
func Has(variant string) bool {
	for _, impl := range Implementations() {
		if impl.BuildVariant == variant {
			return true
		}
	}
	return false
}
