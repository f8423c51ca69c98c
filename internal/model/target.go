package model

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ResolveMode selects how raw identifiers are interpreted by the resolver
type ResolveMode string

const (
	// ResolveAuto tries a name lookup first and falls back to a code lookup
	ResolveAuto ResolveMode = "auto"
	// ResolveByName only matches normalized company names
	ResolveByName ResolveMode = "name"
	// ResolveByCode only matches listing codes
	ResolveByCode ResolveMode = "code"
)

// ParseResolveMode converts a configuration string into a ResolveMode
func ParseResolveMode(s string) (ResolveMode, error) {
	switch m := ResolveMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ResolveAuto, ResolveByName, ResolveByCode:
		return m, nil
	case "":
		return ResolveAuto, nil
	default:
		return "", eris.Errorf("model: unknown resolve mode %q", s)
	}
}

// Target is a raw identifier together with the company it resolved to.
// An empty CanonicalCode means resolution failed.
type Target struct {
	Query         string `json:"query"`
	CanonicalCode string `json:"canonical_code,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
}

// Resolved reports whether the target carries a canonical code
func (t Target) Resolved() bool {
	return t.CanonicalCode != ""
}

// Label renders the target for log lines, e.g. "Samsung Electronics(005930)"
func (t Target) Label() string {
	base := t.DisplayName
	if base == "" {
		base = t.Query
	}
	if t.CanonicalCode == "" {
		return base
	}
	return fmt.Sprintf("%s(%s)", base, t.CanonicalCode)
}
