package journal

import (
	"context"
	"strconv"
	"time"

	"school-journal/internal/config"
	"school-journal/internal/logger"
	"school-journal/internal/model"
	"school-journal/pkg/errors"

	"github.com/rs/zerolog"
)

type Options struct {
	SearchDebounce time.Duration
	MarkerWindow   time.Duration
	DefaultStatus  model.AttendanceStatus
}

// OptionsFromConfig maps the journal section of the configuration.
func OptionsFromConfig(cfg config.JournalConfig) Options {
	return Options{
		SearchDebounce: cfg.SearchDebounce,
		MarkerWindow:   cfg.MarkerWindow,
		DefaultStatus:  model.AttendanceStatus(cfg.DefaultStatus),
	}
}

func DefaultOptions() Options {
	return Options{
		SearchDebounce: 300 * time.Millisecond,
		MarkerWindow:   3 * time.Second,
		DefaultStatus:  model.AttendanceAbsent,
	}
}

// Session is one open journal: its own state container, attendance cache,
// cell table and search filter over a shared Remote.
type Session struct {
	id     string
	remote Remote

	state        *State
	attendance   *AttendanceCache
	orchestrator *Orchestrator
	cells        *cellTable
	search       *SearchFilter
	projector    projector

	now func() time.Time
	log zerolog.Logger
}

func NewSession(id string, remote Remote, opts Options) *Session {
	state := NewState()
	attendance := NewAttendanceCache(remote, opts.DefaultStatus, state.Touch)

	cells := newCellTable(opts.MarkerWindow, state.Touch)

	s := &Session{
		id:           id,
		remote:       remote,
		state:        state,
		attendance:   attendance,
		orchestrator: NewOrchestrator(remote, state, attendance, cells.reset),
		cells:        cells,
		search:       NewSearchFilter(opts.SearchDebounce, func(string) { state.Touch() }),
		now:          func() time.Time { return time.Now().UTC() },
		log:          logger.Component("journal").With().Str("session_id", id).Logger(),
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

// LoadJournal runs the full load for a class and subject. Cells that are
// not saving are reset once the load starts; a dropped load leaves them be.
func (s *Session) LoadJournal(ctx context.Context, classID, subjectID string) error {
	return s.orchestrator.Load(ctx, classID, subjectID)
}

// SelectPeriod reloads only the grades of periodID.
func (s *Session) SelectPeriod(ctx context.Context, periodID string) error {
	return s.orchestrator.SelectPeriod(ctx, periodID)
}

// Retry re-runs the full load for the current class and subject.
func (s *Session) Retry(ctx context.Context) error {
	sel := s.state.Selection()
	if !sel.HasScope() {
		return errors.ErrNoSelection
	}
	if loadErr := s.state.LoadErr(); loadErr != nil {
		s.log.Info().Str("step", loadErr.Step).Msg("Retrying journal load")
	}
	return s.LoadJournal(ctx, sel.ClassID, sel.SubjectID)
}

func (s *Session) SetSearchQuery(query string) {
	s.search.Set(query)
}

func (s *Session) SearchQuery() string {
	return s.search.Query()
}

// FlushSearch applies a pending search query without waiting for the delay.
func (s *Session) FlushSearch() {
	s.search.Flush()
}

func (s *Session) State() *State {
	return s.state
}

func (s *Session) Attendance() *AttendanceCache {
	return s.attendance
}

// Subscribe calls fn with the new version after every change. Calls come
// from whichever goroutine made the change.
func (s *Session) Subscribe(fn func(version uint64)) func() {
	return s.state.Subscribe(fn)
}

// GradeEditor is the handle of a grade cell in Editing.
type GradeEditor struct {
	session *Session
	key     model.CellKey
}

// AttendanceEditor is the handle of an attendance cell in Editing.
type AttendanceEditor struct {
	session *Session
	key     model.CellKey
}

// EditCell puts a grade cell into Editing with the persisted score as the
// draft.
func (s *Session) EditCell(studentID, lessonID string) (*GradeEditor, error) {
	key := model.CellKey{StudentID: studentID, LessonID: lessonID}
	periodID := s.state.Selection().PeriodID
	if periodID == "" {
		return nil, errors.ErrNoSelection
	}
	if !s.state.hasCell(key) {
		return nil, errors.ErrUnknownCell
	}

	draft := ""
	if s.state.GradesPeriod() == periodID {
		if g, ok := s.state.Grade(key); ok {
			draft = strconv.Itoa(g.Score)
		}
	}

	if err := s.cells.begin(cellID{kind: gradeCell, key: key}, draft, periodID); err != nil {
		return nil, err
	}
	return &GradeEditor{session: s, key: key}, nil
}

// GradeCell returns the handle of a grade cell that is already in Editing.
func (s *Session) GradeCell(studentID, lessonID string) *GradeEditor {
	return &GradeEditor{session: s, key: model.CellKey{StudentID: studentID, LessonID: lessonID}}
}

// Confirm validates value and saves it. An empty value deletes the grade.
// Invalid input leaves the cell in Editing with an inline message.
func (e *GradeEditor) Confirm(ctx context.Context, value string) error {
	return e.session.confirmGrade(ctx, e.key, value)
}

func (e *GradeEditor) Cancel() error {
	return e.session.cells.cancel(cellID{kind: gradeCell, key: e.key})
}

func (e *GradeEditor) Status() model.CellStatus {
	return e.session.cells.status(cellID{kind: gradeCell, key: e.key})
}

func (s *Session) confirmGrade(ctx context.Context, key model.CellKey, value string) error {
	id := cellID{kind: gradeCell, key: key}

	periodID, err := s.cells.editing(id)
	if err != nil {
		return err
	}

	score, hasScore, err := model.ParseScore(value)
	if err != nil {
		s.cells.reject(id, value, validationMessage(err))
		return err
	}

	// Grades in memory only describe the edited period while it is still
	// the loaded one.
	current := s.state.GradesPeriod() == periodID
	prev, hadGrade := s.state.Grade(key)
	if !current {
		hadGrade = false
	}

	if !hasScore && !hadGrade && current {
		s.cells.settle(id)
		return nil
	}

	if err := s.cells.save(id, value); err != nil {
		return err
	}

	log := s.log.With().
		Str("student_id", key.StudentID).
		Str("lesson_id", key.LessonID).
		Str("period_id", periodID).
		Logger()

	if hasScore {
		grade := model.Grade{StudentID: key.StudentID, LessonID: key.LessonID, PeriodID: periodID, Score: score}
		s.state.applyGrade(periodID, key, &grade)

		saved, err := s.remote.UpsertGrade(ctx, grade)
		if err != nil {
			s.rollbackGrade(periodID, key, prev, hadGrade)
			log.Warn().Err(err).Int("score", score).Msg("Failed to save grade")
			s.cells.resolve(id, model.MarkerError, "failed to save grade")
			return err
		}

		if !s.state.applyGrade(periodID, key, &saved) {
			log.Debug().Msg("Grade saved for a period that is no longer loaded")
		}
		marker := model.MarkerEdited
		if !hadGrade {
			marker = model.MarkerAdded
		}
		s.cells.resolve(id, marker, "")
		log.Debug().Int("score", saved.Score).Msg("Grade saved")
		return nil
	}

	s.state.applyGrade(periodID, key, nil)
	if err := s.remote.DeleteGrade(ctx, key.StudentID, key.LessonID, periodID); err != nil {
		s.rollbackGrade(periodID, key, prev, hadGrade)
		log.Warn().Err(err).Msg("Failed to delete grade")
		s.cells.resolve(id, model.MarkerError, "failed to delete grade")
		return err
	}

	s.cells.resolve(id, model.MarkerEdited, "")
	log.Debug().Msg("Grade deleted")
	return nil
}

func (s *Session) rollbackGrade(periodID string, key model.CellKey, prev model.Grade, hadGrade bool) {
	if hadGrade {
		s.state.applyGrade(periodID, key, &prev)
		return
	}
	s.state.applyGrade(periodID, key, nil)
}

// EditAttendance puts an attendance cell into Editing with the current
// status as the draft.
func (s *Session) EditAttendance(studentID, lessonID string) (*AttendanceEditor, error) {
	key := model.CellKey{StudentID: studentID, LessonID: lessonID}
	if !s.state.hasCell(key) {
		return nil, errors.ErrUnknownCell
	}

	draft := string(s.attendance.Get(studentID, lessonID))
	if err := s.cells.begin(cellID{kind: attendanceCell, key: key}, draft, ""); err != nil {
		return nil, err
	}
	return &AttendanceEditor{session: s, key: key}, nil
}

func (s *Session) AttendanceCell(studentID, lessonID string) *AttendanceEditor {
	return &AttendanceEditor{session: s, key: model.CellKey{StudentID: studentID, LessonID: lessonID}}
}

func (e *AttendanceEditor) Confirm(ctx context.Context, status string) error {
	id := cellID{kind: attendanceCell, key: e.key}
	if _, err := e.session.cells.editing(id); err != nil {
		return err
	}

	parsed, err := model.ParseAttendanceStatus(status)
	if err != nil {
		e.session.cells.reject(id, status, validationMessage(err))
		return err
	}
	return e.session.saveAttendance(ctx, e.key, parsed)
}

func (e *AttendanceEditor) Cancel() error {
	return e.session.cells.cancel(cellID{kind: attendanceCell, key: e.key})
}

func (e *AttendanceEditor) Status() model.CellStatus {
	return e.session.cells.status(cellID{kind: attendanceCell, key: e.key})
}

// SetAttendance records a status for a cell without an explicit edit step.
func (s *Session) SetAttendance(ctx context.Context, studentID, lessonID, status string) error {
	key := model.CellKey{StudentID: studentID, LessonID: lessonID}
	if !s.state.hasCell(key) {
		return errors.ErrUnknownCell
	}

	parsed, err := model.ParseAttendanceStatus(status)
	if err != nil {
		return err
	}
	return s.saveAttendance(ctx, key, parsed)
}

func (s *Session) saveAttendance(ctx context.Context, key model.CellKey, status model.AttendanceStatus) error {
	id := cellID{kind: attendanceCell, key: key}
	if err := s.cells.save(id, string(status)); err != nil {
		return err
	}

	patched := s.attendance.patch(key.StudentID, key.LessonID, status)

	if err := s.attendance.Upsert(ctx, key.LessonID, key.StudentID, status); err != nil {
		s.attendance.restore(key.StudentID, key.LessonID, patched)
		s.log.Warn().Err(err).
			Str("student_id", key.StudentID).
			Str("lesson_id", key.LessonID).
			Str("status", string(status)).
			Msg("Failed to save attendance")
		s.cells.resolve(id, model.MarkerError, "failed to save attendance")
		return err
	}

	marker := model.MarkerEdited
	if !patched.existed {
		marker = model.MarkerAdded
	}
	s.cells.resolve(id, marker, "")
	return nil
}

// Rows is the projected grid for the current state and search query.
func (s *Session) Rows() []model.GridRow {
	version := s.state.Version()
	return s.projector.rowsFor(version, func() []model.GridRow {
		snap := s.state.snapshot()

		records := s.attendance.Records()
		attendance := make([]model.AttendanceRecord, 0, len(records))
		for _, r := range records {
			attendance = append(attendance, r)
		}

		students := MatchStudents(snap.students, s.search.Query())
		rows := Project(students, snap.lessons, snap.grades, attendance, s.attendance.DefaultStatus())
		decorate(rows, s.cells.overlay())
		return rows
	})
}

func (s *Session) Snapshot() model.JournalSnapshot {
	rows := s.Rows()
	snap := s.state.snapshot()

	out := model.JournalSnapshot{
		SessionID: s.id,
		Selection: snap.selection,
		Periods:   snap.periods,
		Lessons:   snap.lessons,
		Loading:   snap.loading,
		Search:    s.search.Query(),
		Rows:      rows,
		Version:   snap.version,
		At:        s.now(),
	}
	if snap.loadErr != nil {
		out.LoadError = &model.LoadErrorResponse{
			Step:      snap.loadErr.Step,
			Message:   snap.loadErr.Err.Error(),
			Retryable: true,
		}
	}
	return out
}

// Close stops the search debounce and every marker timer.
func (s *Session) Close() {
	s.search.Stop()
	s.cells.close()
}

func validationMessage(err error) string {
	var ve errors.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}
