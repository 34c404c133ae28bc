package spreadsheet

import (
	"fmt"
	"testing"
)

func newBenchSheet(b *testing.B, config Config) *RunnableSpreadsheet {
	b.Helper()
	r := NewRunnableSpreadsheetWithConfig(config, func(s string) { b.Log(s) }).AddSheet("Sheet1")
	if err := r.Error(); err != nil {
		b.Fatal(err)
	}
	return r
}

func mustSet(b *testing.B, r *RunnableSpreadsheet, address string, value Primitive) {
	if err := r.Set(address, value).Error(); err != nil {
		b.Fatalf("set %s: %v", address, err)
	}
}

func BenchmarkLargeCellPopulation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		r := newBenchSheet(b, DefaultConfig())
		r.Batch(func(r *RunnableSpreadsheet) *RunnableSpreadsheet {
			for row := 1; row <= 100; row++ {
				for col := 1; col <= 26; col++ {
					r.Set(fmt.Sprintf("Sheet1!%s%d", colLetters(col), row), float64(row*col))
				}
			}
			return r
		}).Must()
	}
}

func BenchmarkFormulaDependencyChain(b *testing.B) {
	r := newBenchSheet(b, DefaultConfig())
	mustSet(b, r, "Sheet1!A1", 1.0)
	for i := 2; i <= 100; i++ {
		mustSet(b, r, fmt.Sprintf("Sheet1!A%d", i), fmt.Sprintf("=A%d+1", i-1))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, r, "Sheet1!A1", float64(i))
	}
}

func BenchmarkWideDependencyFanOut(b *testing.B) {
	for _, parallelism := range []int{1, 4} {
		b.Run(fmt.Sprintf("parallelism=%d", parallelism), func(b *testing.B) {
			config := DefaultConfig()
			config.Parallelism = parallelism
			r := newBenchSheet(b, config)
			mustSet(b, r, "Sheet1!A1", 100.0)
			for i := 2; i <= 500; i++ {
				mustSet(b, r, fmt.Sprintf("Sheet1!B%d", i), "=A1*2")
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				mustSet(b, r, "Sheet1!A1", float64(i))
			}
		})
	}
}

func BenchmarkLargeRangeSUM(b *testing.B) {
	r := newBenchSheet(b, DefaultConfig())
	for i := 1; i <= 1000; i++ {
		mustSet(b, r, fmt.Sprintf("Sheet1!A%d", i), float64(i))
	}
	mustSet(b, r, "Sheet1!B1", "=SUM(A1:A1000)")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, r, "Sheet1!A500", float64(i))
	}
}

// BenchmarkGrowingRanges measures formulas over prefix ranges, each of which
// reuses the cached result of the next smaller one.
func BenchmarkGrowingRanges(b *testing.B) {
	r := newBenchSheet(b, DefaultConfig())
	for i := 1; i <= 300; i++ {
		mustSet(b, r, fmt.Sprintf("Sheet1!A%d", i), float64(i))
		mustSet(b, r, fmt.Sprintf("Sheet1!B%d", i), fmt.Sprintf("=SUM(A1:A%d)", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, r, "Sheet1!A300", float64(i))
	}
}

func BenchmarkVolatileFunctions(b *testing.B) {
	r := newBenchSheet(b, DefaultConfig())
	for i := 1; i <= 100; i++ {
		mustSet(b, r, fmt.Sprintf("Sheet1!A%d", i), "=RAND()")
		mustSet(b, r, fmt.Sprintf("Sheet1!B%d", i), fmt.Sprintf("=A%d*100", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, r, "Sheet1!C1", float64(i))
	}
}

func BenchmarkMultiWorksheetReferences(b *testing.B) {
	r := newBenchSheet(b, DefaultConfig())
	for s := 2; s <= 5; s++ {
		r.AddSheet(fmt.Sprintf("Sheet%d", s)).Must()
	}
	for i := 1; i <= 50; i++ {
		mustSet(b, r, fmt.Sprintf("Sheet1!A%d", i), float64(i))
		for s := 2; s <= 5; s++ {
			mustSet(b, r, fmt.Sprintf("Sheet%d!A%d", s, i), fmt.Sprintf("=Sheet%d!A%d*2", s-1, i))
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, r, "Sheet1!A1", float64(i))
	}
}

func BenchmarkSparseMatrix(b *testing.B) {
	for i := 0; i < b.N; i++ {
		r := newBenchSheet(b, DefaultConfig())
		for j := 0; j < 100; j++ {
			mustSet(b, r, fmt.Sprintf("Sheet1!%s%d", colLetters(j*7%300+1), j*97%10000+1), float64(j))
		}
	}
}

func BenchmarkCircularReferenceDetection(b *testing.B) {
	r := newBenchSheet(b, DefaultConfig())
	for i := 1; i < 50; i++ {
		mustSet(b, r, fmt.Sprintf("Sheet1!A%d", i), fmt.Sprintf("=A%d+1", i+1))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, r, "Sheet1!A50", "=A1")
		mustSet(b, r, "Sheet1!A50", float64(i))
	}
}

func BenchmarkRowInsertAndDelete(b *testing.B) {
	r := newBenchSheet(b, DefaultConfig())
	for i := 1; i <= 200; i++ {
		mustSet(b, r, fmt.Sprintf("Sheet1!A%d", i), float64(i))
		mustSet(b, r, fmt.Sprintf("Sheet1!B%d", i), fmt.Sprintf("=A%d*2", i))
	}
	mustSet(b, r, "Sheet1!C1", "=SUM(B1:B200)")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.AddRows("Sheet1", 100, 1).RemoveRows("Sheet1", 100, 1).Must()
	}
}

func BenchmarkAggregationFunctions(b *testing.B) {
	r := newBenchSheet(b, DefaultConfig())
	for i := 1; i <= 500; i++ {
		mustSet(b, r, fmt.Sprintf("Sheet1!A%d", i), float64(i))
	}
	for i, fn := range []string{"SUM", "AVERAGE", "COUNT", "MAX", "MIN", "MEDIAN"} {
		mustSet(b, r, fmt.Sprintf("Sheet1!B%d", i+1), fmt.Sprintf("=%s(A1:A500)", fn))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, r, "Sheet1!A250", float64(i))
	}
}

func BenchmarkConditionalLogic(b *testing.B) {
	r := newBenchSheet(b, DefaultConfig())
	for i := 1; i <= 200; i++ {
		mustSet(b, r, fmt.Sprintf("Sheet1!A%d", i), float64(i))
		mustSet(b, r, fmt.Sprintf("Sheet1!B%d", i), fmt.Sprintf(`=IF(A%d>100, A%d*2, A%d/2)`, i, i, i))
		mustSet(b, r, fmt.Sprintf("Sheet1!C%d", i), fmt.Sprintf(`=AND(A%d>50, A%d<150)`, i, i))
		mustSet(b, r, fmt.Sprintf("Sheet1!D%d", i), fmt.Sprintf(`=MINIFS(A1:A200, A1:A200, ">"&A%d)`, i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, r, "Sheet1!A1", float64(i%300))
	}
}

func BenchmarkDirtyPropagation(b *testing.B) {
	r := newBenchSheet(b, DefaultConfig())
	grid := 20
	for row := 1; row <= grid; row++ {
		for col := 1; col <= grid; col++ {
			addr := fmt.Sprintf("Sheet1!%s%d", colLetters(col), row)
			switch {
			case row == 1 && col == 1:
				mustSet(b, r, addr, 1.0)
			case row == 1:
				mustSet(b, r, addr, fmt.Sprintf("=%s%d+1", colLetters(col-1), row))
			case col == 1:
				mustSet(b, r, addr, fmt.Sprintf("=%s%d+1", colLetters(col), row-1))
			default:
				mustSet(b, r, addr, fmt.Sprintf("=%s%d+%s%d", colLetters(col-1), row, colLetters(col), row-1))
			}
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, r, "Sheet1!A1", float64(i%100))
	}
}

// colLetters names a 1-based column.
func colLetters(col int) string {
	return ColumnToLetters(col - 1)
}
