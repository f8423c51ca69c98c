package dart

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"ratiofetcher/internal/ratelimit"
	"ratiofetcher/internal/resolver"
)

// maxArchiveSize bounds the corp code download
const maxArchiveSize = 64 << 20

type corpCodeResult struct {
	List []corpCodeRow `xml:"list"`
}

type corpCodeRow struct {
	CorpCode  string `xml:"corp_code"`
	CorpName  string `xml:"corp_name"`
	StockCode string `xml:"stock_code"`
}

// LoadDirectory downloads the corp code archive and builds the identifier
// directory from it
func (c *Client) LoadDirectory(ctx context.Context) (*resolver.Directory, error) {
	if err := c.limiter.Wait(ctx, ratelimit.APIDart); err != nil {
		return nil, eris.Wrap(err, "dart: wait for rate limiter")
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/zip").
		SetQueryParam("crtfc_key", c.apiKey).
		SetDoNotParseResponse(true).
		Get("/corpCode.xml")
	if err != nil {
		return nil, eris.Wrap(err, "dart: download corp codes")
	}
	defer resp.RawResponse.Body.Close()

	if !resp.IsSuccess() {
		return nil, eris.Errorf("dart: corp code download returned status %d", resp.StatusCode())
	}

	data, err := io.ReadAll(io.LimitReader(resp.RawResponse.Body, maxArchiveSize))
	if err != nil {
		return nil, eris.Wrap(err, "dart: read corp code archive")
	}

	entries, err := ParseCorpCodes(data)
	if err != nil {
		return nil, err
	}
	zap.L().Info("corp code directory loaded", zap.Int("entries", len(entries)))
	return resolver.NewDirectory(entries), nil
}

// ParseCorpCodes reads the zipped CORPCODE.xml. The upstream answers errors
// with a small JSON or XML body instead of a zip, which is reported as is.
func ParseCorpCodes(data []byte) ([]resolver.Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Errorf("dart: corp code archive is not a zip: %.200s", string(data))
	}

	for _, f := range zr.File {
		if !strings.EqualFold(f.Name, "CORPCODE.xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, eris.Wrap(err, "dart: open CORPCODE.xml")
		}
		defer rc.Close()

		var result corpCodeResult
		if err := xml.NewDecoder(rc).Decode(&result); err != nil {
			return nil, eris.Wrap(err, "dart: decode CORPCODE.xml")
		}
		if len(result.List) == 0 {
			return nil, eris.New("dart: corp code archive is empty")
		}

		entries := make([]resolver.Entry, 0, len(result.List))
		for _, row := range result.List {
			entries = append(entries, resolver.Entry{
				CorpCode:  strings.TrimSpace(row.CorpCode),
				Name:      strings.TrimSpace(row.CorpName),
				StockCode: strings.TrimSpace(row.StockCode),
			})
		}
		return entries, nil
	}
	return nil, eris.New("dart: CORPCODE.xml missing from archive")
}
