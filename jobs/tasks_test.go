package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLedgerIntegrityTask(t *testing.T) {
	task, err := NewLedgerIntegrityTask(time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, TaskLedgerIntegrity, task.Type())
	require.Contains(t, string(task.Payload()), "2025-03-01")
}

func TestIdempotencyCleanupTaskDefaultsApplyInHandler(t *testing.T) {
	task, err := NewIdempotencyCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, TaskIdempotencyCleanup, task.Type())
}

func TestIntegrityReportTotal(t *testing.T) {
	report := IntegrityReport{UnbalancedEntries: 1, ItemDrift: 2, FallbackNumbers: 3}
	require.Equal(t, 6, report.Total())
	require.Zero(t, IntegrityReport{}.Total())
}
