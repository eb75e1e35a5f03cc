package journal

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"school-journal/internal/gateway"
	"school-journal/internal/logger"
	"school-journal/internal/model"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init("disabled", "json")
	os.Exit(m.Run())
}

// testRemote counts calls per operation, injects failures and can hold the
// next call of an operation open until the test releases it.
type testRemote struct {
	*gateway.Gateway

	mu       sync.Mutex
	calls    map[string]int
	failures map[string]error
	holds    map[string]*heldCall
}

// heldCall blocks one remote call: entered fires when the call arrives and
// the call returns after release is closed.
type heldCall struct {
	entered chan struct{}
	release chan struct{}
}

func newTestRemote(store gateway.Store) *testRemote {
	return &testRemote{
		Gateway:  gateway.New(store),
		calls:    make(map[string]int),
		failures: make(map[string]error),
		holds:    make(map[string]*heldCall),
	}
}

// holdNext blocks the next call of op only; later calls pass through.
func (r *testRemote) holdNext(op string) *heldCall {
	h := &heldCall{entered: make(chan struct{}, 1), release: make(chan struct{})}
	r.mu.Lock()
	r.holds[op] = h
	r.mu.Unlock()
	return h
}

func (r *testRemote) hit(op string) error {
	r.mu.Lock()
	r.calls[op]++
	err := r.failures[op]
	h := r.holds[op]
	delete(r.holds, op)
	r.mu.Unlock()

	if h != nil {
		h.entered <- struct{}{}
		<-h.release
	}
	return err
}

func (r *testRemote) failOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, op)
		return
	}
	r.failures[op] = err
}

func (r *testRemote) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func (r *testRemote) ActivePeriods(ctx context.Context) ([]model.GradingPeriod, error) {
	if err := r.hit("periods"); err != nil {
		return nil, err
	}
	return r.Gateway.ActivePeriods(ctx)
}

func (r *testRemote) Students(ctx context.Context, classID string) ([]model.Student, error) {
	if err := r.hit("students"); err != nil {
		return nil, err
	}
	return r.Gateway.Students(ctx, classID)
}

func (r *testRemote) Lessons(ctx context.Context, subjectID string) ([]model.Lesson, error) {
	if err := r.hit("lessons"); err != nil {
		return nil, err
	}
	return r.Gateway.Lessons(ctx, subjectID)
}

func (r *testRemote) Grades(ctx context.Context, periodID string, lessonIDs, studentIDs []string) ([]model.Grade, error) {
	if err := r.hit("grades"); err != nil {
		return nil, err
	}
	return r.Gateway.Grades(ctx, periodID, lessonIDs, studentIDs)
}

func (r *testRemote) Attendance(ctx context.Context, lessonIDs, studentIDs []string) ([]model.AttendanceRecord, error) {
	if err := r.hit("attendance"); err != nil {
		return nil, err
	}
	return r.Gateway.Attendance(ctx, lessonIDs, studentIDs)
}

func (r *testRemote) UpsertGrade(ctx context.Context, grade model.Grade) (model.Grade, error) {
	if err := r.hit("upsert_grade"); err != nil {
		return model.Grade{}, err
	}
	return r.Gateway.UpsertGrade(ctx, grade)
}

func (r *testRemote) DeleteGrade(ctx context.Context, studentID, lessonID, periodID string) error {
	if err := r.hit("delete_grade"); err != nil {
		return err
	}
	return r.Gateway.DeleteGrade(ctx, studentID, lessonID, periodID)
}

func (r *testRemote) FindAttendance(ctx context.Context, lessonID, studentID string) (*model.AttendanceRecord, error) {
	if err := r.hit("find_attendance"); err != nil {
		return nil, err
	}
	return r.Gateway.FindAttendance(ctx, lessonID, studentID)
}

func (r *testRemote) SaveAttendance(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	if err := r.hit("save_attendance"); err != nil {
		return model.AttendanceRecord{}, err
	}
	return r.Gateway.SaveAttendance(ctx, rec)
}

func (r *testRemote) InsertAttendance(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	if err := r.hit("insert_attendance"); err != nil {
		return model.AttendanceRecord{}, err
	}
	return r.Gateway.InsertAttendance(ctx, rec)
}

// seedStore holds class C1 (Alice, Bob), class C2 (Carol), subject S1 with
// two lessons and active periods Q1 and Q2.
func seedStore(t *testing.T) *gateway.MemoryStore {
	t.Helper()

	store := gateway.NewMemoryStore()
	require.NoError(t, store.Insert(gateway.TablePeriods,
		map[string]any{"id": "Q2", "name": "Second quarter", "start_date": "2024-04-01", "end_date": "2024-06-30", "is_active": true},
		map[string]any{"id": "Q1", "name": "First quarter", "start_date": "2024-01-01", "end_date": "2024-03-31", "is_active": true},
		map[string]any{"id": "Q0", "name": "Old quarter", "start_date": "2023-09-01", "end_date": "2023-12-31", "is_active": false},
	))
	require.NoError(t, store.Insert(gateway.TableStudents,
		map[string]any{"id": "bob", "first_name": "Bob", "last_name": "Brown", "class_id": "C1"},
		map[string]any{"id": "alice", "first_name": "Alice", "last_name": "Adams", "class_id": "C1"},
		map[string]any{"id": "carol", "first_name": "Carol", "last_name": "Clark", "class_id": "C2"},
	))
	require.NoError(t, store.Insert(gateway.TableLessons,
		map[string]any{"id": "L2", "title": "Decimals", "date": "2024-01-17", "subject_id": "S1"},
		map[string]any{"id": "L1", "title": "Fractions", "date": "2024-01-10", "subject_id": "S1"},
		map[string]any{"id": "L9", "title": "Poetry", "date": "2024-01-11", "subject_id": "S2"},
	))
	return store
}

func seedGrade(t *testing.T, store *gateway.MemoryStore, studentID, lessonID, periodID string, score int) {
	t.Helper()
	require.NoError(t, store.Insert(gateway.TableGrades, model.Grade{
		StudentID: studentID,
		LessonID:  lessonID,
		PeriodID:  periodID,
		Score:     score,
	}))
}

func newTestSession(t *testing.T, remote Remote, mutators ...func(*Options)) *Session {
	t.Helper()

	opts := Options{
		MarkerWindow:  time.Hour,
		DefaultStatus: model.AttendanceAbsent,
	}
	for _, m := range mutators {
		m(&opts)
	}

	s := NewSession("test-session", remote, opts)
	t.Cleanup(s.Close)
	return s
}

func loadedSession(t *testing.T, remote Remote, mutators ...func(*Options)) *Session {
	t.Helper()
	s := newTestSession(t, remote, mutators...)
	require.NoError(t, s.LoadJournal(context.Background(), "C1", "S1"))
	return s
}

func findRow(t *testing.T, rows []model.GridRow, studentID string) model.GridRow {
	t.Helper()
	for _, r := range rows {
		if r.Student.ID == studentID {
			return r
		}
	}
	t.Fatalf("findRow() no row for student %q", studentID)
	return model.GridRow{}
}

func findCell(t *testing.T, rows []model.GridRow, studentID, lessonID string) model.GridCell {
	t.Helper()
	for _, c := range findRow(t, rows, studentID).Cells {
		if c.LessonID == lessonID {
			return c
		}
	}
	t.Fatalf("findCell() no cell for %q/%q", studentID, lessonID)
	return model.GridCell{}
}
