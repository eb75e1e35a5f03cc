package journal

import (
	"context"
	"sync/atomic"
	"time"

	"school-journal/internal/logger"
	"school-journal/internal/model"
	"school-journal/pkg/errors"

	"github.com/rs/zerolog"
)

// Remote is the slice of the gateway the journal engine depends on.
type Remote interface {
	ActivePeriods(ctx context.Context) ([]model.GradingPeriod, error)
	Students(ctx context.Context, classID string) ([]model.Student, error)
	Lessons(ctx context.Context, subjectID string) ([]model.Lesson, error)
	Grades(ctx context.Context, periodID string, lessonIDs, studentIDs []string) ([]model.Grade, error)
	Attendance(ctx context.Context, lessonIDs, studentIDs []string) ([]model.AttendanceRecord, error)

	UpsertGrade(ctx context.Context, grade model.Grade) (model.Grade, error)
	DeleteGrade(ctx context.Context, studentID, lessonID, periodID string) error

	FindAttendance(ctx context.Context, lessonID, studentID string) (*model.AttendanceRecord, error)
	SaveAttendance(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error)
	InsertAttendance(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error)
}

// Orchestrator loads periods, students, lessons, grades and attendance into
// a State. At most one load runs at a time; a load started while another is
// running is dropped with ErrLoadInProgress.
type Orchestrator struct {
	remote     Remote
	state      *State
	attendance *AttendanceCache
	busy       atomic.Bool
	// onScopeLoad runs once a full load has taken the guard.
	onScopeLoad func()
	log         zerolog.Logger
}

func NewOrchestrator(remote Remote, state *State, attendance *AttendanceCache, onScopeLoad func()) *Orchestrator {
	if onScopeLoad == nil {
		onScopeLoad = func() {}
	}
	return &Orchestrator{
		remote:      remote,
		state:       state,
		attendance:  attendance,
		onScopeLoad: onScopeLoad,
		log:         logger.Component("orchestrator"),
	}
}

// Load runs the full path for a class and subject. Previously selected
// periods are kept when they are still active.
func (o *Orchestrator) Load(ctx context.Context, classID, subjectID string) error {
	if classID == "" || subjectID == "" {
		return errors.ErrNoSelection
	}
	if !o.busy.CompareAndSwap(false, true) {
		o.log.Debug().Str("class_id", classID).Str("subject_id", subjectID).Msg("Load dropped, another load is running")
		return errors.ErrLoadInProgress
	}
	defer o.busy.Store(false)

	start := time.Now()
	log := o.log.With().Str("class_id", classID).Str("subject_id", subjectID).Logger()
	log.Info().Msg("Loading journal")

	o.state.beginScopeLoad(classID, subjectID)
	o.onScopeLoad()
	o.attendance.Reset()

	if !o.state.periodsFetched() {
		periods, err := o.remote.ActivePeriods(ctx)
		if err != nil {
			o.state.setPeriods(nil, false)
			return o.fail(log, StepPeriods, err)
		}
		o.state.setPeriods(periods, true)
	}

	students, err := o.remote.Students(ctx, classID)
	if err != nil {
		o.state.setStudents(nil)
		return o.fail(log, StepStudents, err)
	}
	if students == nil {
		students = []model.Student{}
	}
	o.state.setStudents(students)

	lessons, err := o.remote.Lessons(ctx, subjectID)
	if err != nil {
		o.state.setLessons(nil)
		return o.fail(log, StepLessons, err)
	}
	if lessons == nil {
		lessons = []model.Lesson{}
	}
	o.state.setLessons(lessons)

	if periodID := o.state.Selection().PeriodID; periodID != "" {
		if err := o.loadGrades(ctx, periodID); err != nil {
			return o.fail(log, StepGrades, err)
		}
	}

	if err := o.loadAttendance(ctx); err != nil {
		return o.fail(log, StepAttendance, err)
	}

	o.state.finishLoad(nil)
	log.Info().
		Int("students", len(students)).
		Int("lessons", len(lessons)).
		Str("period_id", o.state.Selection().PeriodID).
		Dur("duration", time.Since(start)).
		Msg("Journal loaded")
	return nil
}

// SelectPeriod reloads grades for periodID without touching students,
// lessons or attendance. Selecting the period already loaded is a no-op.
func (o *Orchestrator) SelectPeriod(ctx context.Context, periodID string) error {
	if periodID == "" || !o.state.knowsPeriod(periodID) {
		return errors.ValidationError{Field: "period_id", Value: periodID, Message: errors.ErrUnknownPeriod.Error()}
	}
	if o.state.Selection().PeriodID == periodID && o.state.gradesReady(periodID) {
		return nil
	}
	if !o.busy.CompareAndSwap(false, true) {
		o.log.Debug().Str("period_id", periodID).Msg("Period change dropped, another load is running")
		return errors.ErrLoadInProgress
	}
	defer o.busy.Store(false)

	log := o.log.With().Str("period_id", periodID).Logger()

	o.state.beginPeriodLoad(periodID)

	// Without students and lessons there is nothing to scope grades by; the
	// next full load picks the selected period up.
	if _, _, ok := o.state.scope(); !ok {
		o.state.finishLoad(nil)
		return nil
	}

	if err := o.loadGrades(ctx, periodID); err != nil {
		return o.fail(log, StepGrades, err)
	}

	o.state.finishLoad(nil)
	log.Info().Msg("Grades reloaded for period")
	return nil
}

func (o *Orchestrator) loadGrades(ctx context.Context, periodID string) error {
	studentIDs, lessonIDs, ok := o.state.scope()
	if !ok {
		return nil
	}

	grades, err := o.remote.Grades(ctx, periodID, lessonIDs, studentIDs)
	if err != nil {
		o.state.setGrades(periodID, nil, false)
		return err
	}
	o.state.setGrades(periodID, grades, true)
	return nil
}

func (o *Orchestrator) loadAttendance(ctx context.Context) error {
	studentIDs, lessonIDs, ok := o.state.scope()
	if !ok {
		return nil
	}

	if err := o.attendance.Load(ctx, lessonIDs, studentIDs); err != nil {
		o.attendance.Reset()
		return err
	}
	return nil
}

func (o *Orchestrator) fail(log zerolog.Logger, step string, err error) error {
	loadErr := &LoadError{Step: step, Err: err}
	log.Error().Err(err).Str("step", step).Bool("retryable", loadErr.Retryable()).Msg("Journal load failed")
	o.state.finishLoad(loadErr)
	return loadErr
}
