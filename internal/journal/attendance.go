package journal

import (
	"context"
	"sync"
	"time"

	"school-journal/internal/logger"
	"school-journal/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AttendanceCache holds the attendance records of one journal session,
// keyed by (student, lesson). Writes go through the remote store and are
// followed by a refresh from it.
type AttendanceCache struct {
	remote        Remote
	defaultStatus model.AttendanceStatus
	onChange      func()
	now           func() time.Time

	mu         sync.RWMutex
	records    map[model.CellKey]model.AttendanceRecord
	lessonIDs  []string
	studentIDs []string
	// gen changes whenever the cache is reset or replaced. Fetches started
	// under an older generation are discarded.
	gen uint64

	log zerolog.Logger
}

func NewAttendanceCache(remote Remote, defaultStatus model.AttendanceStatus, onChange func()) *AttendanceCache {
	if !defaultStatus.Valid() {
		defaultStatus = model.AttendanceAbsent
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &AttendanceCache{
		remote:        remote,
		defaultStatus: defaultStatus,
		onChange:      onChange,
		now:           func() time.Time { return time.Now().UTC() },
		records:       make(map[model.CellKey]model.AttendanceRecord),
		log:           logger.Component("attendance_cache"),
	}
}

// Load replaces the cache with the records of the given lessons and
// students and remembers that scope for later refreshes.
func (c *AttendanceCache) Load(ctx context.Context, lessonIDs, studentIDs []string) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	records, err := c.remote.Attendance(ctx, lessonIDs, studentIDs)
	if err != nil {
		return err
	}

	c.replace(gen, lessonIDs, studentIDs, records)
	return nil
}

// replace installs records and scope if the cache is still at gen.
func (c *AttendanceCache) replace(gen uint64, lessonIDs, studentIDs []string, records []model.AttendanceRecord) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	c.lessonIDs = append([]string(nil), lessonIDs...)
	c.studentIDs = append([]string(nil), studentIDs...)
	c.records = make(map[model.CellKey]model.AttendanceRecord, len(records))
	for _, r := range records {
		c.records[r.Key()] = r
	}
	c.mu.Unlock()

	c.onChange()
	return true
}

// Reset empties the cache and forgets its scope.
func (c *AttendanceCache) Reset() {
	c.mu.Lock()
	c.gen++
	c.records = make(map[model.CellKey]model.AttendanceRecord)
	c.lessonIDs = nil
	c.studentIDs = nil
	c.mu.Unlock()

	c.onChange()
}

// Get returns the status of a cell, or the default status when nothing
// has been recorded.
func (c *AttendanceCache) Get(studentID, lessonID string) model.AttendanceStatus {
	if rec, ok := c.Lookup(studentID, lessonID); ok {
		return rec.Status
	}
	return c.defaultStatus
}

func (c *AttendanceCache) Lookup(studentID, lessonID string) (model.AttendanceRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[model.CellKey{StudentID: studentID, LessonID: lessonID}]
	return rec, ok
}

func (c *AttendanceCache) DefaultStatus() model.AttendanceStatus {
	return c.defaultStatus
}

// Records returns a copy of every cached record.
func (c *AttendanceCache) Records() map[model.CellKey]model.AttendanceRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[model.CellKey]model.AttendanceRecord, len(c.records))
	for k, v := range c.records {
		out[k] = v
	}
	return out
}

// Upsert records a status for (lesson, student): the existing remote record
// is looked up and updated, or a new one is inserted. The cache is then
// refreshed from the remote store.
func (c *AttendanceCache) Upsert(ctx context.Context, lessonID, studentID string, status model.AttendanceStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}

	log := c.log.With().Str("lesson_id", lessonID).Str("student_id", studentID).Logger()

	c.mu.RLock()
	gen := c.gen
	lessonIDs := append([]string(nil), c.lessonIDs...)
	studentIDs := append([]string(nil), c.studentIDs...)
	c.mu.RUnlock()

	existing, err := c.remote.FindAttendance(ctx, lessonID, studentID)
	if err != nil {
		return err
	}

	var saved model.AttendanceRecord
	if existing != nil {
		rec := *existing
		rec.Status = status
		rec.NotedAt = c.now()
		saved, err = c.remote.SaveAttendance(ctx, rec)
	} else {
		saved, err = c.remote.InsertAttendance(ctx, model.AttendanceRecord{
			ID:        uuid.NewString(),
			LessonID:  lessonID,
			StudentID: studentID,
			Status:    status,
			NotedAt:   c.now(),
		})
	}
	if err != nil {
		return err
	}

	log.Debug().Str("status", string(saved.Status)).Bool("updated", existing != nil).Msg("Attendance written")

	if err := c.refresh(ctx, gen, lessonIDs, studentIDs, lessonID, studentID); err != nil {
		// The write landed; keep the written record until the next load.
		log.Warn().Err(err).Msg("Failed to refresh attendance after write")
		c.putAt(gen, saved)
	}
	return nil
}

// refresh reloads the scope the cache held when a write started. If the
// cache was reset or reloaded since (gen moved on), the result belongs to
// another selection and is dropped.
func (c *AttendanceCache) refresh(ctx context.Context, gen uint64, lessonIDs, studentIDs []string, lessonID, studentID string) error {
	if len(lessonIDs) == 0 || len(studentIDs) == 0 {
		records, err := c.remote.Attendance(ctx, []string{lessonID}, []string{studentID})
		if err != nil {
			return err
		}
		for _, r := range records {
			c.putAt(gen, r)
		}
		return nil
	}

	records, err := c.remote.Attendance(ctx, lessonIDs, studentIDs)
	if err != nil {
		return err
	}
	if !c.replace(gen, lessonIDs, studentIDs, records) {
		c.log.Debug().Str("lesson_id", lessonID).Str("student_id", studentID).Msg("Stale attendance refresh discarded")
	}
	return nil
}

// putAt stores rec unless the cache changed generation since gen.
func (c *AttendanceCache) putAt(gen uint64, rec model.AttendanceRecord) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.records[rec.Key()] = rec
	c.mu.Unlock()

	c.onChange()
}

// attendancePatch is what patch replaced, for restore.
type attendancePatch struct {
	prev    model.AttendanceRecord
	existed bool
	gen     uint64
}

// patch sets a status locally ahead of the remote write and returns what
// it replaced so the caller can roll back.
func (c *AttendanceCache) patch(studentID, lessonID string, status model.AttendanceStatus) attendancePatch {
	key := model.CellKey{StudentID: studentID, LessonID: lessonID}

	c.mu.Lock()
	prev, existed := c.records[key]
	next := prev
	if !existed {
		next = model.AttendanceRecord{LessonID: lessonID, StudentID: studentID}
	}
	next.Status = status
	next.NotedAt = c.now()
	c.records[key] = next
	gen := c.gen
	c.mu.Unlock()

	c.onChange()
	return attendancePatch{prev: prev, existed: existed, gen: gen}
}

// restore undoes p unless the cache has since been reset or reloaded.
func (c *AttendanceCache) restore(studentID, lessonID string, p attendancePatch) {
	key := model.CellKey{StudentID: studentID, LessonID: lessonID}

	c.mu.Lock()
	if c.gen != p.gen {
		c.mu.Unlock()
		return
	}
	if p.existed {
		c.records[key] = p.prev
	} else {
		delete(c.records, key)
	}
	c.mu.Unlock()

	c.onChange()
}
