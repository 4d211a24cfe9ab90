package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatx/energy-engine/allocation"
	"github.com/heatx/energy-engine/allocation/store"
)

func archived(id string, at time.Time) allocation.ArchivedReport {
	return allocation.ArchivedReport{
		ID:        id,
		SessionID: "session-" + id,
		Report:    allocation.Report{Allocation: allocation.DefaultWeights, GeneratedAt: at},
		CreatedAt: at,
	}
}

func TestMemory_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.SaveReport(ctx, archived("b", base.Add(time.Hour))))
	require.NoError(t, m.SaveReport(ctx, archived("a", base)))
	require.NoError(t, m.SaveReport(ctx, archived("c", base.Add(2*time.Hour))))

	all, err := m.ListReports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	two, err := m.ListReports(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	got, err := m.GetReport(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "session-a", got.SessionID)
}

func TestMemory_DuplicateAndMissing(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	now := time.Now()

	require.NoError(t, m.SaveReport(ctx, archived("a", now)))
	assert.ErrorIs(t, m.SaveReport(ctx, archived("a", now)), allocation.ErrDuplicateReport)

	_, err := m.GetReport(ctx, "nope")
	assert.ErrorIs(t, err, allocation.ErrReportNotFound)
	assert.True(t, allocation.IsNotFound(err))
}
