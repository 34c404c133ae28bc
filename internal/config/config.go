// Package config loads sheetcalc workbook files. A workbook is HCL:
//
//	engine {
//	  parallelism   = 4
//	  compact_every = 64
//	}
//
//	logging {
//	  level  = "debug"
//	  format = "json"
//	}
//
//	sheet "Sheet1" {
//	  cells = {
//	    A1 = 10
//	    B1 = "=A1*2"
//	  }
//	}
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"

	"github.com/vogtb/sheetcalc/internal/logging"
	"github.com/vogtb/sheetcalc/packages/spreadsheet"
)

// Config is a decoded workbook file.
type Config struct {
	Engine  EngineConfig
	Logging logging.Config
	Sheets  []Sheet
}

// EngineConfig mirrors the tunables of spreadsheet.Config.
type EngineConfig struct {
	Parallelism  int
	CompactEvery int
}

// Sheet is one sheet block. Cells maps A1 addresses to their raw contents.
type Sheet struct {
	Name  string
	Cells map[string]spreadsheet.Primitive
}

func Default() *Config {
	d := spreadsheet.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			Parallelism:  d.Parallelism,
			CompactEvery: d.CompactEvery,
		},
		Logging: logging.DefaultConfig(),
	}
}

type fileRoot struct {
	Engine  *engineBlock    `hcl:"engine,block"`
	Logging *logging.Config `hcl:"logging,block"`
	Sheets  []*sheetBlock   `hcl:"sheet,block"`
}

type engineBlock struct {
	Parallelism  *int `hcl:"parallelism,optional"`
	CompactEvery *int `hcl:"compact_every,optional"`
}

type sheetBlock struct {
	Name  string     `hcl:"name,label"`
	Cells *cty.Value `hcl:"cells,optional"`
}

// Load reads and decodes the workbook at path.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook %s: %w", path, err)
	}
	return Parse(src, path)
}

// Parse decodes workbook source. filename is used in diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	cfg := Default()
	if e := root.Engine; e != nil {
		if e.Parallelism != nil {
			cfg.Engine.Parallelism = *e.Parallelism
		}
		if e.CompactEvery != nil {
			cfg.Engine.CompactEvery = *e.CompactEvery
		}
	}
	if cfg.Engine.Parallelism < 0 || cfg.Engine.CompactEvery < 0 {
		return nil, fmt.Errorf("%s: engine settings must not be negative", filename)
	}
	if root.Logging != nil {
		cfg.Logging = *root.Logging
	}

	seen := make(map[string]struct{}, len(root.Sheets))
	for _, block := range root.Sheets {
		key := strings.ToLower(block.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%s: sheet %q defined twice", filename, block.Name)
		}
		seen[key] = struct{}{}

		sheet := Sheet{Name: block.Name, Cells: map[string]spreadsheet.Primitive{}}
		if block.Cells != nil && !block.Cells.IsNull() {
			cells, err := decodeCells(*block.Cells)
			if err != nil {
				return nil, fmt.Errorf("%s: sheet %q: %w", filename, block.Name, err)
			}
			sheet.Cells = cells
		}
		cfg.Sheets = append(cfg.Sheets, sheet)
	}
	return cfg, nil
}

func decodeCells(v cty.Value) (map[string]spreadsheet.Primitive, error) {
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("cells must be an object, got %s", ty.FriendlyName())
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("cells must be known values")
	}
	out := make(map[string]spreadsheet.Primitive, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		k, val := it.Element()
		address := k.AsString()
		p, err := primitive(val)
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", address, err)
		}
		out[address] = p
	}
	return out, nil
}

// primitive converts a cty scalar to a cell content.
func primitive(v cty.Value) (spreadsheet.Primitive, error) {
	if v.IsNull() {
		return nil, nil
	}
	switch v.Type() {
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		if math.IsInf(f, 0) {
			return nil, fmt.Errorf("number %s out of range", v.AsBigFloat().String())
		}
		return f, nil
	case cty.String:
		return v.AsString(), nil
	case cty.Bool:
		return v.True(), nil
	}
	return nil, fmt.Errorf("unsupported value of type %s", v.Type().FriendlyName())
}

// SpreadsheetConfig returns the engine config for this workbook.
func (c *Config) SpreadsheetConfig(logger *zap.Logger) spreadsheet.Config {
	sc := spreadsheet.DefaultConfig()
	sc.Parallelism = c.Engine.Parallelism
	sc.CompactEvery = c.Engine.CompactEvery
	sc.Logger = logger
	return sc
}

// Populate defines every sheet of the workbook and writes all cells in one
// batch (chainable).
func (c *Config) Populate(r *spreadsheet.RunnableSpreadsheet) *spreadsheet.RunnableSpreadsheet {
	for _, sheet := range c.Sheets {
		r.WithSheet(sheet.Name)
	}
	cells := make(map[string]spreadsheet.Primitive)
	for _, sheet := range c.Sheets {
		prefix := "'" + strings.ReplaceAll(sheet.Name, "'", "''") + "'!"
		for address, value := range sheet.Cells {
			cells[prefix+address] = value
		}
	}
	return r.SetBatch(cells)
}
