package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEvalWorkbook(t *testing.T) {
	book := writeFile(t, "book.hcl", `
logging {
  level = "error"
}

sheet "Sheet1" {
  cells = {
    A1 = 10
    A2 = 20
    B1 = "=SUM(A1:A2)"
  }
}
`)
	out, err := run(t, "eval", "--workbook", book, "--changes", "--set", "A1=5", "Sheet1!B1")
	require.NoError(t, err)
	require.Equal(t, "Sheet1!A1: 10 -> 5\nSheet1!B1: 30 -> 25\nSheet1!B1: 25\n", out)
}

func TestEvalCSVPrintsEveryCell(t *testing.T) {
	data := writeFile(t, "data.csv", "1,2\n3,=A1+B1+A2\n")
	out, err := run(t, "eval", "--csv", data)
	require.NoError(t, err)
	require.Equal(t, "Sheet1!A1: 1\nSheet1!B1: 2\nSheet1!A2: 3\nSheet1!B2: 6\n", out)
}

func TestEvalCSVIntoWorkbookSheet(t *testing.T) {
	book := writeFile(t, "book.hcl", `
sheet "Data" {
  cells = {
    A1 = 1
  }
}
`)
	data := writeFile(t, "data.csv", "7,8\n")
	out, err := run(t, "eval", "--workbook", book, "--csv", data)
	require.NoError(t, err)
	require.Equal(t, "Data!A1: 7\nData!B1: 8\n", out)
	require.NotContains(t, out, "Sheet1")
}

func TestEvalFormulaEdit(t *testing.T) {
	out, err := run(t, "eval", "--set", "A1=4", "--set", "B1==A1^2", "B1", "C1")
	require.NoError(t, err)
	require.Equal(t, "B1: 16\nC1: <empty>\n", out)
}

func TestEvalErrors(t *testing.T) {
	_, err := run(t, "eval", "--set", "nonsense")
	require.ErrorContains(t, err, "CELL=CONTENT")

	_, err = run(t, "eval", "--set", "1A=3")
	require.Error(t, err)

	_, err = run(t, "eval", "--workbook", filepath.Join(t.TempDir(), "missing.hcl"))
	require.Error(t, err)

	_, err = run(t, "eval", "--csv", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Equal(t, "sheetcalc version dev\n", out)
}
