package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratiofetcher/internal/model"
)

func testDirectory() *Directory {
	return NewDirectory([]Entry{
		{CorpCode: "00126380", Name: "삼성전자", StockCode: "005930"},
		{CorpCode: "00164779", Name: "SK하이닉스", StockCode: "000660"},
		// same name twice: the unlisted filer is loaded first
		{CorpCode: "00999001", Name: "한빛소재", StockCode: ""},
		{CorpCode: "00999002", Name: "한빛소재 주식회사", StockCode: "123450"},
		{CorpCode: "00258801", Name: "(주)카카오", StockCode: "035720"},
		{CorpCode: "00777777", Name: "비상장물산", StockCode: ""},
		{CorpCode: "00000042", Name: "Acme Holdings Co., Ltd.", StockCode: "4200"},
	})
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"삼성전자", "삼성전자"},
		{"  삼성   전자 ", "삼성 전자"},
		{"㈜카카오", "카카오"},
		{"주식회사 카카오", "카카오"},
		{"ＳＫ하이닉스", "sk하이닉스"},
		{"Acme Holdings Co., Ltd.", "acme holdings"},
		{"ACME HOLDINGS INC", "acme holdings"},
		{"주식회사", "주식회사"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "005930", NormalizeCode("5930"))
	assert.Equal(t, "005930", NormalizeCode(" 005930 "))
	assert.Equal(t, "00126380", NormalizeCode("00126380"))
	assert.Equal(t, "A005930", NormalizeCode("A005930"))
	assert.Equal(t, "", NormalizeCode("  "))
}

func TestResolve_Auto(t *testing.T) {
	r := New(testDirectory())

	targets := r.Resolve([]string{"삼성전자", "660", "카카오", "없는회사", "acme holdings"}, model.ResolveAuto)
	require.Len(t, targets, 5)

	assert.Equal(t, "005930", targets[0].CanonicalCode)
	assert.Equal(t, "삼성전자", targets[0].DisplayName)

	assert.Equal(t, "000660", targets[1].CanonicalCode)
	assert.Equal(t, "SK하이닉스", targets[1].DisplayName)

	assert.Equal(t, "035720", targets[2].CanonicalCode)

	assert.False(t, targets[3].Resolved())
	assert.Equal(t, "없는회사", targets[3].Query)

	assert.Equal(t, "004200", targets[4].CanonicalCode)
}

func TestResolve_PrefersTradableEntry(t *testing.T) {
	target := New(testDirectory()).ResolveOne("한빛소재", model.ResolveAuto)
	assert.Equal(t, "123450", target.CanonicalCode)
}

func TestResolve_EntryWithoutListingCode(t *testing.T) {
	target := New(testDirectory()).ResolveOne("비상장물산", model.ResolveAuto)
	assert.False(t, target.Resolved())
	assert.Equal(t, "비상장물산", target.DisplayName)
}

func TestResolve_Modes(t *testing.T) {
	r := New(testDirectory())

	assert.False(t, r.ResolveOne("005930", model.ResolveByName).Resolved())
	assert.True(t, r.ResolveOne("005930", model.ResolveByCode).Resolved())
	assert.False(t, r.ResolveOne("삼성전자", model.ResolveByCode).Resolved())
	assert.True(t, r.ResolveOne("삼성전자", model.ResolveByName).Resolved())
	// filer codes resolve in code mode too
	assert.Equal(t, "005930", r.ResolveOne("00126380", model.ResolveByCode).CanonicalCode)
}

func TestResolve_BlankIdentifier(t *testing.T) {
	target := New(testDirectory()).ResolveOne("   ", model.ResolveAuto)
	assert.False(t, target.Resolved())
	assert.Empty(t, target.Query)
}

func TestDirectory_CorpCode(t *testing.T) {
	d := testDirectory()
	code, ok := d.CorpCode("5930")
	require.True(t, ok)
	assert.Equal(t, "00126380", code)

	_, ok = d.CorpCode("999999")
	assert.False(t, ok)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corps.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"corp_code": "00126380", "corp_name": "삼성전자", "stock_code": "005930"}
	]`), 0o644))

	d, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0o644))
	_, err = LoadFile(empty)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDirectory_SaveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "corps.json")
	require.NoError(t, testDirectory().SaveFile(path))

	d, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testDirectory().Len(), d.Len())

	code, ok := d.CorpCode("005930")
	require.True(t, ok)
	assert.Equal(t, "00126380", code)
}
