package journal

import (
	"sync"
	"time"

	"school-journal/internal/model"
	"school-journal/pkg/errors"
)

type cellKind int

const (
	gradeCell cellKind = iota
	attendanceCell
)

func (k cellKind) String() string {
	if k == attendanceCell {
		return "attendance"
	}
	return "grade"
}

type cellID struct {
	kind cellKind
	key  model.CellKey
}

// cell is the edit state of one grid cell. A cell with no entry in the
// table is Viewing with no marker.
type cell struct {
	phase    model.CellState
	draft    string
	periodID string
	marker   model.Marker
	message  string

	timer *time.Timer
	gen   uint64
}

// cellTable holds the per-cell state machines. Cells are independent; the
// table lock only guards the map and is never held across remote calls.
type cellTable struct {
	mu       sync.Mutex
	cells    map[cellID]*cell
	window   time.Duration
	onChange func()
	closed   bool
}

func newCellTable(window time.Duration, onChange func()) *cellTable {
	if onChange == nil {
		onChange = func() {}
	}
	return &cellTable{
		cells:    make(map[cellID]*cell),
		window:   window,
		onChange: onChange,
	}
}

func (t *cellTable) get(id cellID) *cell {
	c, ok := t.cells[id]
	if !ok {
		c = &cell{phase: model.CellViewing}
		t.cells[id] = c
	}
	return c
}

// begin moves a cell into Editing with the given draft. A pending marker is
// dropped together with its timer.
func (t *cellTable) begin(id cellID, draft, periodID string) error {
	t.mu.Lock()
	c := t.get(id)
	if c.phase == model.CellSaving {
		t.mu.Unlock()
		return errors.ErrCellBusy
	}
	c.stopTimer()
	c.phase = model.CellEditing
	c.draft = draft
	c.periodID = periodID
	c.marker = model.MarkerNone
	c.message = ""
	t.mu.Unlock()

	t.onChange()
	return nil
}

// editing returns the period captured when editing began.
func (t *cellTable) editing(id cellID) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.cells[id]
	if !ok || c.phase != model.CellEditing {
		return "", errors.ErrNotEditing
	}
	return c.periodID, nil
}

// reject keeps the cell in Editing and shows an inline message.
func (t *cellTable) reject(id cellID, draft, message string) {
	t.mu.Lock()
	c := t.get(id)
	c.draft = draft
	c.message = message
	t.mu.Unlock()

	t.onChange()
}

func (t *cellTable) cancel(id cellID) error {
	t.mu.Lock()
	c, ok := t.cells[id]
	if !ok || c.phase != model.CellEditing {
		t.mu.Unlock()
		return errors.ErrNotEditing
	}
	delete(t.cells, id)
	t.mu.Unlock()

	t.onChange()
	return nil
}

// save moves an Editing or Viewing cell into Saving.
func (t *cellTable) save(id cellID, draft string) error {
	t.mu.Lock()
	c := t.get(id)
	if c.phase == model.CellSaving {
		t.mu.Unlock()
		return errors.ErrCellBusy
	}
	c.stopTimer()
	c.phase = model.CellSaving
	c.draft = draft
	c.marker = model.MarkerNone
	c.message = ""
	t.mu.Unlock()

	t.onChange()
	return nil
}

// settle returns a cell to Viewing with no marker.
func (t *cellTable) settle(id cellID) {
	t.mu.Lock()
	if c, ok := t.cells[id]; ok {
		c.stopTimer()
		delete(t.cells, id)
	}
	t.mu.Unlock()

	t.onChange()
}

// resolve returns a cell to Viewing and attaches a marker that clears
// itself after the marker window.
func (t *cellTable) resolve(id cellID, marker model.Marker, message string) {
	t.mu.Lock()
	c := t.get(id)
	c.stopTimer()
	c.phase = model.CellViewing
	c.draft = ""
	c.marker = marker
	c.message = message

	if !t.closed && marker != model.MarkerNone {
		gen := c.gen
		c.timer = time.AfterFunc(t.window, func() { t.expire(id, gen) })
	}
	t.mu.Unlock()

	t.onChange()
}

func (t *cellTable) expire(id cellID, gen uint64) {
	t.mu.Lock()
	c, ok := t.cells[id]
	if !ok || c.gen != gen || c.phase != model.CellViewing {
		t.mu.Unlock()
		return
	}
	delete(t.cells, id)
	t.mu.Unlock()

	t.onChange()
}

func (t *cellTable) status(id cellID) model.CellStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.cells[id]
	if !ok {
		return model.CellStatus{State: model.CellViewing}
	}
	return c.status()
}

// overlay returns the status of every cell that is not plain Viewing.
func (t *cellTable) overlay() map[cellID]model.CellStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[cellID]model.CellStatus, len(t.cells))
	for id, c := range t.cells {
		out[id] = c.status()
	}
	return out
}

// reset drops every cell that is not saving. In-flight saves resolve on
// their own.
func (t *cellTable) reset() {
	t.mu.Lock()
	for id, c := range t.cells {
		if c.phase == model.CellSaving {
			continue
		}
		c.stopTimer()
		delete(t.cells, id)
	}
	t.mu.Unlock()

	t.onChange()
}

// close stops every pending marker timer.
func (t *cellTable) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for _, c := range t.cells {
		c.stopTimer()
	}
}

func (c *cell) stopTimer() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *cell) status() model.CellStatus {
	return model.CellStatus{
		State:   c.phase,
		Draft:   c.draft,
		Marker:  c.marker,
		Message: c.message,
	}
}
