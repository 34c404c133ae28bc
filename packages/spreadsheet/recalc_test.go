package spreadsheet

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecalculationObservability(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	config := DefaultConfig()
	config.Logger = zap.New(core)

	okBefore := testutil.ToFloat64(recalculationsTotal.WithLabelValues("ok"))
	cyclesBefore := testutil.ToFloat64(cyclesDetected)
	insertsBefore := testutil.ToFloat64(transformationsRecorded.WithLabelValues(RowInsert.String()))

	r := NewRunnableSpreadsheetWithConfig(config, func(string) {}).
		AddSheet("Sheet1").
		Set("A1", 1).
		Set("B1", "=C1").
		Set("C1", "=B1").
		AddRows("Sheet1", 0, 1)
	require.NoError(t, r.Error())

	require.Equal(t, okBefore+5, testutil.ToFloat64(recalculationsTotal.WithLabelValues("ok")))
	require.GreaterOrEqual(t, testutil.ToFloat64(cyclesDetected)-cyclesBefore, 1.0)
	require.Equal(t, insertsBefore+1, testutil.ToFloat64(transformationsRecorded.WithLabelValues(RowInsert.String())))

	finished := logs.FilterMessage("recalculation finished").All()
	require.Len(t, finished, 5)
	ids := make(map[string]struct{})
	for _, entry := range finished {
		id, ok := entry.ContextMap()["cycle_id"].(string)
		require.True(t, ok)
		ids[id] = struct{}{}
	}
	require.Len(t, ids, 5, "every cycle gets its own id")

	require.Equal(t, 1, logs.FilterMessage("sheet added").Len())
	// the sheet definition and the row insert
	require.Equal(t, 2, logs.FilterMessage("transformation recorded").Len())
	require.NotZero(t, logs.FilterMessage("cycles found").Len())
}

func TestRecalculationCancelledMetric(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	config := DefaultConfig()
	config.Logger = zap.New(core)
	s := NewSpreadsheetWithConfig(config)
	_, _, err := s.AddSheet(context.Background(), "Sheet1")
	require.NoError(t, err)

	before := testutil.ToFloat64(recalculationsTotal.WithLabelValues("cancelled"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.SetCellContents(ctx, SimpleCellAddress{Sheet: 1}, "=1+1")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, before+1, testutil.ToFloat64(recalculationsTotal.WithLabelValues("cancelled")))
	require.Equal(t, 1, logs.FilterMessage("recalculation cancelled").Len())
}
