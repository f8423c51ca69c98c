// Package resolver maps raw identifiers (company names or listing codes) to
// canonical listing codes using a preloaded directory.
package resolver

import (
	"strings"

	"go.uber.org/zap"

	"ratiofetcher/internal/model"
)

// Resolver resolves identifiers against a read-only Directory
type Resolver struct {
	dir *Directory
}

// New creates a Resolver over dir
func New(dir *Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns one Target per identifier, in input order. Failures are not
// errors: they yield a Target without a canonical code.
func (r *Resolver) Resolve(identifiers []string, mode model.ResolveMode) []model.Target {
	targets := make([]model.Target, 0, len(identifiers))
	for _, id := range identifiers {
		targets = append(targets, r.ResolveOne(id, mode))
	}
	return targets
}

// ResolveOne resolves a single identifier
func (r *Resolver) ResolveOne(identifier string, mode model.ResolveMode) model.Target {
	query := strings.TrimSpace(identifier)
	t := model.Target{Query: query}
	if query == "" {
		return t
	}

	entry, ok := r.lookup(query, mode)
	if !ok {
		zap.L().Debug("identifier not found", zap.String("query", query), zap.String("mode", string(mode)))
		return t
	}

	t.DisplayName = strings.TrimSpace(entry.Name)
	t.CanonicalCode = NormalizeCode(entry.StockCode)
	if t.CanonicalCode == "" {
		zap.L().Debug("identifier has no listing code", zap.String("query", query), zap.String("corp_code", entry.CorpCode))
	}
	return t
}

func (r *Resolver) lookup(query string, mode model.ResolveMode) (Entry, bool) {
	switch mode {
	case model.ResolveByName:
		return r.dir.LookupName(query)
	case model.ResolveByCode:
		return r.dir.LookupCode(query)
	default:
		if e, ok := r.dir.LookupName(query); ok {
			return e, true
		}
		return r.dir.LookupCode(query)
	}
}
