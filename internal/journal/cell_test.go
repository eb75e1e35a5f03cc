package journal

import (
	"sync/atomic"
	"testing"
	"time"

	"school-journal/internal/model"
	"school-journal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCell = cellID{kind: gradeCell, key: model.CellKey{StudentID: "s1", LessonID: "l1"}}

func TestCellTable_Lifecycle(t *testing.T) {
	var changes atomic.Int32
	table := newCellTable(time.Hour, func() { changes.Add(1) })
	defer table.close()

	require.NoError(t, table.begin(testCell, "4", "Q1"))
	periodID, err := table.editing(testCell)
	require.NoError(t, err)
	assert.Equal(t, "Q1", periodID)

	table.reject(testCell, "x", "must be a whole number")
	assert.Equal(t, model.CellStatus{State: model.CellEditing, Draft: "x", Message: "must be a whole number"}, table.status(testCell))

	require.NoError(t, table.save(testCell, "5"))
	assert.Equal(t, model.CellSaving, table.status(testCell).State)
	assert.ErrorIs(t, table.begin(testCell, "", "Q1"), errors.ErrCellBusy)
	assert.ErrorIs(t, table.save(testCell, "6"), errors.ErrCellBusy)
	_, err = table.editing(testCell)
	assert.ErrorIs(t, err, errors.ErrNotEditing)

	table.resolve(testCell, model.MarkerEdited, "")
	assert.Equal(t, model.CellStatus{State: model.CellViewing, Marker: model.MarkerEdited}, table.status(testCell))
	assert.Positive(t, changes.Load())
}

func TestCellTable_MarkerExpires(t *testing.T) {
	table := newCellTable(10*time.Millisecond, nil)
	defer table.close()

	table.resolve(testCell, model.MarkerError, "failed to save grade")
	assert.Equal(t, model.MarkerError, table.status(testCell).Marker)

	assert.Eventually(t, func() bool {
		return table.status(testCell) == model.CellStatus{State: model.CellViewing}
	}, time.Second, 2*time.Millisecond)
	assert.Empty(t, table.overlay())
}

func TestCellTable_ReEditCancelsMarker(t *testing.T) {
	table := newCellTable(10*time.Millisecond, nil)
	defer table.close()

	table.resolve(testCell, model.MarkerAdded, "")
	require.NoError(t, table.begin(testCell, "7", "Q1"))

	time.Sleep(40 * time.Millisecond)
	status := table.status(testCell)
	assert.Equal(t, model.CellEditing, status.State)
	assert.Equal(t, "7", status.Draft)
	assert.Equal(t, model.MarkerNone, status.Marker)
}

func TestCellTable_CloseStopsTimers(t *testing.T) {
	table := newCellTable(10*time.Millisecond, nil)

	table.resolve(testCell, model.MarkerEdited, "")
	table.close()

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, model.MarkerEdited, table.status(testCell).Marker)
}

func TestCellTable_ResetKeepsSaving(t *testing.T) {
	table := newCellTable(time.Hour, nil)
	defer table.close()

	other := cellID{kind: attendanceCell, key: testCell.key}
	require.NoError(t, table.save(testCell, "3"))
	require.NoError(t, table.begin(other, "late", ""))

	table.reset()

	assert.Equal(t, model.CellSaving, table.status(testCell).State)
	assert.Equal(t, model.CellViewing, table.status(other).State)
}
