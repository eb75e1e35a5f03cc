package journal

import (
	"fmt"
	"sync"

	"school-journal/internal/model"
	"school-journal/pkg/errors"
)

// Load steps, used to attribute failures.
const (
	StepPeriods    = "periods"
	StepStudents   = "students"
	StepLessons    = "lessons"
	StepGrades     = "grades"
	StepAttendance = "attendance"
)

// LoadError is the retryable error state left behind by a failed load.
type LoadError struct {
	Step string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("journal load failed at %s: %v", e.Step, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the underlying failure is transient. Every load
// failure can be retried by the user; this only hints at the cause.
func (e *LoadError) Retryable() bool {
	return errors.IsRetryable(e.Err)
}

// State is the journal's state container. One instance is owned by each
// session; every mutation bumps the version and notifies subscribers.
type State struct {
	mu sync.RWMutex

	version   uint64
	selection model.Selection

	periods       []model.GradingPeriod
	periodsLoaded bool

	students     []model.Student
	lessons      []model.Lesson
	scopeLoaded  bool
	grades       map[model.CellKey]model.Grade
	gradesPeriod string
	gradesLoaded bool
	loading      bool
	loadErr      *LoadError

	subMu       sync.Mutex
	subscribers map[int]func(version uint64)
	nextSub     int
}

func NewState() *State {
	return &State{
		grades:      make(map[model.CellKey]model.Grade),
		subscribers: make(map[int]func(uint64)),
	}
}

// Subscribe registers fn to be called after every change. The returned
// function removes the subscription.
func (s *State) Subscribe(fn func(version uint64)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Touch marks the state as changed without mutating it, for changes held
// by collaborators (attendance cache, cell overlays, search).
func (s *State) Touch() {
	s.mutate(func() {})
}

func (s *State) mutate(fn func()) {
	s.mu.Lock()
	fn()
	s.version++
	v := s.version
	s.mu.Unlock()

	s.subMu.Lock()
	subs := make([]func(uint64), 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.subMu.Unlock()

	for _, sub := range subs {
		sub(v)
	}
}

func (s *State) Selection() model.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

func (s *State) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *State) LoadErr() *LoadError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// beginScopeLoad starts a full load: every derived set is cleared and the
// loading flag raised. The selected period survives a class/subject change.
func (s *State) beginScopeLoad(classID, subjectID string) {
	s.mutate(func() {
		s.selection.ClassID = classID
		s.selection.SubjectID = subjectID
		s.students = nil
		s.lessons = nil
		s.scopeLoaded = false
		s.grades = make(map[model.CellKey]model.Grade)
		s.gradesPeriod = ""
		s.gradesLoaded = false
		s.loading = true
		s.loadErr = nil
	})
}

// beginPeriodLoad selects a period and clears the grade set if it belongs
// to another period.
func (s *State) beginPeriodLoad(periodID string) {
	s.mutate(func() {
		s.selection.PeriodID = periodID
		if s.gradesPeriod != periodID {
			s.grades = make(map[model.CellKey]model.Grade)
			s.gradesPeriod = ""
			s.gradesLoaded = false
		}
		s.loading = true
		s.loadErr = nil
	})
}

func (s *State) finishLoad(loadErr *LoadError) {
	s.mutate(func() {
		s.loading = false
		s.loadErr = loadErr
	})
}

func (s *State) periodsFetched() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.periodsLoaded
}

// setPeriods stores the active periods and selects the first one when no
// valid period is selected yet.
func (s *State) setPeriods(periods []model.GradingPeriod, loaded bool) {
	s.mutate(func() {
		s.periods = periods
		s.periodsLoaded = loaded
		if !loaded {
			return
		}
		if s.selection.PeriodID != "" && hasPeriod(periods, s.selection.PeriodID) {
			return
		}
		s.selection.PeriodID = ""
		if len(periods) > 0 {
			s.selection.PeriodID = periods[0].ID
		}
	})
}

func (s *State) Periods() []model.GradingPeriod {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.GradingPeriod(nil), s.periods...)
}

// knowsPeriod reports whether periodID can be selected. Before periods load
// any id is accepted.
func (s *State) knowsPeriod(periodID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.periodsLoaded || hasPeriod(s.periods, periodID)
}

func hasPeriod(periods []model.GradingPeriod, id string) bool {
	for _, p := range periods {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (s *State) setStudents(students []model.Student) {
	s.mutate(func() { s.students = students })
}

func (s *State) setLessons(lessons []model.Lesson) {
	s.mutate(func() {
		s.lessons = lessons
		s.scopeLoaded = lessons != nil && s.students != nil
	})
}

func (s *State) setGrades(periodID string, grades []model.Grade, loaded bool) {
	s.mutate(func() {
		s.grades = make(map[model.CellKey]model.Grade, len(grades))
		for _, g := range grades {
			s.grades[g.Key()] = g
		}
		s.gradesPeriod = ""
		s.gradesLoaded = loaded
		if loaded {
			s.gradesPeriod = periodID
		}
	})
}

// GradesPeriod is the period whose grades are currently held in memory.
func (s *State) GradesPeriod() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gradesPeriod
}

func (s *State) gradesReady(periodID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gradesLoaded && s.gradesPeriod == periodID
}

// scope returns the loaded student and lesson ids; ok is false until both
// sets have loaded.
func (s *State) scope() (studentIDs, lessonIDs []string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.scopeLoaded {
		return nil, nil, false
	}
	studentIDs = make([]string, len(s.students))
	for i, st := range s.students {
		studentIDs[i] = st.ID
	}
	lessonIDs = make([]string, len(s.lessons))
	for i, l := range s.lessons {
		lessonIDs[i] = l.ID
	}
	return studentIDs, lessonIDs, true
}

func (s *State) hasCell(key model.CellKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.scopeLoaded {
		return false
	}
	foundStudent, foundLesson := false, false
	for _, st := range s.students {
		if st.ID == key.StudentID {
			foundStudent = true
			break
		}
	}
	for _, l := range s.lessons {
		if l.ID == key.LessonID {
			foundLesson = true
			break
		}
	}
	return foundStudent && foundLesson
}

// Grade returns the in-memory grade of a cell.
func (s *State) Grade(key model.CellKey) (model.Grade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grades[key]
	return g, ok
}

// applyGrade writes (or, with nil, removes) a grade if periodID is still the
// period held in memory. It reports whether the write landed.
func (s *State) applyGrade(periodID string, key model.CellKey, grade *model.Grade) bool {
	applied := false
	s.mutate(func() {
		if s.gradesPeriod != periodID {
			return
		}
		if grade == nil {
			delete(s.grades, key)
		} else {
			s.grades[key] = *grade
		}
		applied = true
	})
	return applied
}

type stateSnapshot struct {
	version   uint64
	selection model.Selection
	periods   []model.GradingPeriod
	students  []model.Student
	lessons   []model.Lesson
	grades    []model.Grade
	loading   bool
	loadErr   *LoadError
}

func (s *State) snapshot() stateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grades := make([]model.Grade, 0, len(s.grades))
	for _, g := range s.grades {
		grades = append(grades, g)
	}

	return stateSnapshot{
		version:   s.version,
		selection: s.selection,
		periods:   append([]model.GradingPeriod(nil), s.periods...),
		students:  append([]model.Student(nil), s.students...),
		lessons:   append([]model.Lesson(nil), s.lessons...),
		grades:    grades,
		loading:   s.loading,
		loadErr:   s.loadErr,
	}
}
