package model

import "github.com/hashicorp/go-version"

// parseConstraint wraps hashicorp/go-version's constraint parser; an empty
// requirement string means "any version" (">= 0.0.0").
func parseConstraint(raw string) (version.Constraints, error) {
	if raw == "" {
		raw = ">= 0.0.0"
	}
	return version.NewConstraint(raw)
}

// Satisfies reports whether v meets every constraint in c.
func Satisfies(v *version.Version, c version.Constraints) bool {
	return c.Check(v)
}
