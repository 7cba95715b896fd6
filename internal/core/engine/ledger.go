package engine

import (
	"sync"
	"time"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/loaders"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/metrics"
)

var ledgerColumns = []string{
	"param_code", "param_label", "group_store", "year",
	"service", "error_message", "timestamp",
}

// Ledger is the append-only CSV record of parameter-year tasks that failed
// and were skipped. It is the operator's retry worklist; nothing in the run
// reads it back.
type Ledger struct {
	path  string
	mu    sync.Mutex
	clock func() time.Time
}

// NewLedger returns a ledger appending to path.
func NewLedger(path string) *Ledger {
	return &Ledger{path: path, clock: time.Now}
}

// Record appends one skipped parameter-year entry.
func (l *Ledger) Record(service string, year int, param core.Parameter, cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	row := &core.Frame{
		Columns: ledgerColumns,
		Rows: [][]string{{
			param.Code,
			param.Label,
			param.GroupStore,
			core.FormatValue(year),
			service,
			msg,
			l.clock().UTC().Format(time.RFC3339),
		}},
	}
	if err := loaders.AppendCSV(row, l.path); err != nil {
		return err
	}
	metrics.SkippedParametersTotal.WithLabelValues(service).Inc()
	return nil
}
