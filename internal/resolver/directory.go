package resolver

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Entry is one company in the identifier directory
type Entry struct {
	// CorpCode is the upstream filer identifier.
	CorpCode string `json:"corp_code"`
	Name     string `json:"corp_name"`
	// StockCode is the tradable listing code; empty for unlisted filers.
	StockCode string `json:"stock_code,omitempty"`
}

// Tradable reports whether the entry carries a listing code
func (e Entry) Tradable() bool {
	return NormalizeCode(e.StockCode) != ""
}

// Directory is the in-memory name/code index. It is built once and never
// mutated afterwards, so concurrent readers need no locking.
type Directory struct {
	byName  map[string][]Entry
	byCode  map[string]Entry
	byCorp  map[string]Entry
	entries []Entry
}

// NewDirectory indexes entries by normalized name, listing code and filer code
func NewDirectory(entries []Entry) *Directory {
	d := &Directory{
		byName:  make(map[string][]Entry, len(entries)),
		byCode:  make(map[string]Entry, len(entries)),
		byCorp:  make(map[string]Entry, len(entries)),
		entries: append([]Entry(nil), entries...),
	}
	for _, e := range entries {
		if key := NormalizeName(e.Name); key != "" {
			d.byName[key] = append(d.byName[key], e)
		}
		if code := NormalizeCode(e.StockCode); code != "" {
			if _, dup := d.byCode[code]; !dup {
				d.byCode[code] = e
			}
		}
		if e.CorpCode != "" {
			d.byCorp[e.CorpCode] = e
		}
	}
	return d
}

// Len returns the number of loaded entries
func (d *Directory) Len() int {
	return len(d.entries)
}

// LookupName finds an entry by normalized name. Among identically named
// entries the first tradable one wins, then the first loaded.
func (d *Directory) LookupName(name string) (Entry, bool) {
	candidates := d.byName[NormalizeName(name)]
	if len(candidates) == 0 {
		return Entry{}, false
	}
	for _, e := range candidates {
		if e.Tradable() {
			return e, true
		}
	}
	return candidates[0], true
}

// LookupCode finds an entry by listing code (zero-padded) or filer code
func (d *Directory) LookupCode(code string) (Entry, bool) {
	c := NormalizeCode(code)
	if e, ok := d.byCode[c]; ok {
		return e, true
	}
	e, ok := d.byCorp[c]
	return e, ok
}

// CorpCode maps a listing code to the upstream filer identifier
func (d *Directory) CorpCode(stockCode string) (string, bool) {
	e, ok := d.byCode[NormalizeCode(stockCode)]
	if !ok || e.CorpCode == "" {
		return "", false
	}
	return e.CorpCode, true
}

// LoadFile reads a JSON array of entries
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "resolver: read directory %s", path)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrapf(err, "resolver: decode directory %s", path)
	}
	if len(entries) == 0 {
		return nil, eris.Errorf("resolver: directory %s is empty", path)
	}
	return NewDirectory(entries), nil
}

// SaveFile writes the directory as a JSON array LoadFile can read back
func (d *Directory) SaveFile(path string) error {
	data, err := json.Marshal(d.entries)
	if err != nil {
		return eris.Wrap(err, "resolver: encode directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "resolver: create directory for %s", path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "resolver: write directory %s", path)
	}
	return eris.Wrapf(os.Rename(tmp, path), "resolver: replace directory %s", path)
}
