package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/sheetcalc/internal/logging"
	"github.com/vogtb/sheetcalc/packages/spreadsheet"
)

const workbook = `
engine {
  parallelism   = 4
  compact_every = 16
}

logging {
  level  = "debug"
  format = "json"
}

sheet "Data" {
  cells = {
    A1 = 10
    A2 = 2.5
    A3 = true
    A4 = "label"
  }
}

sheet "Summary Sheet" {
  cells = {
    B1 = "=SUM(Data!A1:A2)"
    B2 = "=Data!A4&\"!\""
  }
}
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(workbook), "book.hcl")
	require.NoError(t, err)

	want := &Config{
		Engine:  EngineConfig{Parallelism: 4, CompactEvery: 16},
		Logging: logging.Config{Level: "debug", Format: "json"},
		Sheets: []Sheet{
			{Name: "Data", Cells: map[string]spreadsheet.Primitive{"A1": 10.0, "A2": 2.5, "A3": true, "A4": "label"}},
			{Name: "Summary Sheet", Cells: map[string]spreadsheet.Primitive{"B1": "=SUM(Data!A1:A2)", "B2": `=Data!A4&"!"`}},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("decoded workbook mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`sheet "Empty" {}`), "empty.hcl")
	require.NoError(t, err)
	require.Equal(t, Default().Engine, cfg.Engine)
	require.Equal(t, logging.DefaultConfig(), cfg.Logging)
	require.Len(t, cfg.Sheets, 1)
	require.Empty(t, cfg.Sheets[0].Cells)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"syntax":          `sheet "A" {`,
		"unknown block":   `table "x" {}`,
		"unknown attr":    `engine { threads = 2 }`,
		"negative":        `engine { parallelism = -1 }`,
		"duplicate sheet": "sheet \"A\" {}\nsheet \"a\" {}",
		"list cells":      `sheet "A" { cells = [1, 2] }`,
		"nested value":    `sheet "A" { cells = { A1 = [1] } }`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src), name+".hcl")
			require.Error(t, err)
		})
	}
}

func TestLoadAndPopulate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.hcl")
	require.NoError(t, os.WriteFile(path, []byte(workbook), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	sc := cfg.SpreadsheetConfig(nil)
	require.Equal(t, 4, sc.Parallelism)
	require.Equal(t, 16, sc.CompactEvery)

	r := cfg.Populate(spreadsheet.NewRunnableSpreadsheetWithConfig(sc, func(string) {}))
	require.NoError(t, r.Error())
	require.Equal(t, []string{"Data", "Summary Sheet"}, r.Spreadsheet().Sheets())
	require.Equal(t, 12.5, r.Value("'Summary Sheet'!B1"))
	require.Equal(t, "label!", r.Value("'Summary Sheet'!B2"))
	require.Equal(t, true, r.Value("Data!A3"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.hcl"))
	require.Error(t, err)
}
