package cache

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"ratiofetcher/internal/model"
)

const (
	durableExt    = ".csv"
	periodColumn  = "period"
	floatFormat   = 'g'
	floatBitSize  = 64
	floatMaxPrecs = -1
)

// DurableStore keeps the latest accepted snapshot of every code as a
// human-readable CSV at <dir>/<code>.csv. Columns are "period" followed by
// the record's fields; an empty cell is a null value. The file modification
// time is the entry's creation time.
type DurableStore struct {
	dir string
}

// NewDurableStore creates the base directory if needed
func NewDurableStore(dir string) (*DurableStore, error) {
	if dir == "" {
		return nil, eris.New("cache: durable directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "cache: create durable directory %s", dir)
	}
	return &DurableStore{dir: dir}, nil
}

func (s *DurableStore) path(code string) string {
	return filepath.Join(s.dir, safeName(code)+durableExt)
}

// Get reads the snapshot of code
func (s *DurableStore) Get(code string) (*Entry, error) {
	f, err := os.Open(s.path(code))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "cache: open snapshot %s", code)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, eris.Wrapf(err, "cache: stat snapshot %s", code)
	}

	record, err := decodeRecord(f)
	if err != nil {
		return nil, eris.Wrapf(err, "cache: decode snapshot %s", code)
	}
	return &Entry{CreatedAt: fi.ModTime(), Record: record}, nil
}

// Put replaces the snapshot of code
func (s *DurableStore) Put(code string, record model.RatioRecord) error {
	return writeFileAtomic(s.path(code), func(w io.Writer) error {
		return encodeRecord(w, record)
	})
}

// Delete removes the snapshot of code. No error if not found.
func (s *DurableStore) Delete(code string) error {
	if err := os.Remove(s.path(code)); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "cache: delete snapshot %s", code)
	}
	return nil
}

// List returns the size and modification time of every snapshot
func (s *DurableStore) List() ([]BlobInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrap(err, "cache: list durable directory")
	}
	var infos []BlobInfo
	for _, e := range entries {
		if e.IsDir() || isTemp(e.Name()) || !strings.HasSuffix(e.Name(), durableExt) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, BlobInfo{
			Key:       model.CacheKey{Code: strings.TrimSuffix(e.Name(), durableExt)},
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
		})
	}
	return infos, nil
}

func encodeRecord(w io.Writer, record model.RatioRecord) error {
	fields := record.FieldNames()
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{periodColumn}, fields...)); err != nil {
		return eris.Wrap(err, "cache: write header")
	}

	sorted := record
	sorted.Periods = append([]model.Period(nil), record.Periods...)
	sorted.Sort()

	row := make([]string, len(fields)+1)
	for _, p := range sorted.Periods {
		row[0] = p.Date
		for i, f := range fields {
			row[i+1] = ""
			if v := p.Values[f]; v != nil {
				row[i+1] = strconv.FormatFloat(*v, floatFormat, floatMaxPrecs, floatBitSize)
			}
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "cache: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "cache: flush csv")
}

func decodeRecord(r io.Reader) (model.RatioRecord, error) {
	var record model.RatioRecord

	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return record, eris.Wrap(err, "cache: read csv")
	}
	if len(rows) == 0 || len(rows[0]) == 0 || rows[0][0] != periodColumn {
		return record, eris.New("cache: snapshot has no period header")
	}

	header := rows[0][1:]
	for _, row := range rows[1:] {
		if len(row) != len(header)+1 {
			return record, eris.Errorf("cache: row %q has %d columns, want %d", row[0], len(row), len(header)+1)
		}
		p := model.Period{Date: row[0], Values: make(map[string]*float64, len(header))}
		for i, name := range header {
			cell := strings.TrimSpace(row[i+1])
			if cell == "" {
				p.Values[name] = nil
				continue
			}
			v, err := strconv.ParseFloat(cell, floatBitSize)
			if err != nil {
				p.Values[name] = nil
				continue
			}
			p.Values[name] = model.Float(v)
		}
		record.Periods = append(record.Periods, p)
	}
	record.Sort()
	return record, nil
}
