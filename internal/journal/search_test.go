package journal

import (
	"sync"
	"testing"
	"time"

	"school-journal/internal/model"

	"github.com/stretchr/testify/assert"
)

type applyRecorder struct {
	mu      sync.Mutex
	queries []string
}

func (r *applyRecorder) apply(q string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
}

func (r *applyRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

func TestSearchFilter_Debounce(t *testing.T) {
	rec := &applyRecorder{}
	f := NewSearchFilter(30*time.Millisecond, rec.apply)
	defer f.Stop()

	f.Set("Jo")
	f.Set("Joh")
	f.Set("John")
	assert.Equal(t, "", f.Query())
	assert.True(t, f.Pending())

	assert.Eventually(t, func() bool {
		return len(rec.all()) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"John"}, rec.all())
	assert.Equal(t, "John", f.Query())
	assert.False(t, f.Pending())
}

func TestSearchFilter_Flush(t *testing.T) {
	rec := &applyRecorder{}
	f := NewSearchFilter(time.Hour, rec.apply)
	defer f.Stop()

	f.Set("ann")
	f.Flush()
	assert.Equal(t, "ann", f.Query())
	assert.Equal(t, []string{"ann"}, rec.all())

	// Nothing pending, nothing applied.
	f.Flush()
	assert.Len(t, rec.all(), 1)
}

func TestSearchFilter_Stop(t *testing.T) {
	rec := &applyRecorder{}
	f := NewSearchFilter(10*time.Millisecond, rec.apply)

	f.Set("bob")
	f.Stop()
	f.Set("carol")

	time.Sleep(40 * time.Millisecond)
	assert.Empty(t, rec.all())
	assert.Equal(t, "", f.Query())
}

func TestMatchStudents(t *testing.T) {
	students := []model.Student{
		{ID: "1", FirstName: "John", LastName: "Smith"},
		{ID: "2", FirstName: "Johanna", LastName: "Doe"},
		{ID: "3", FirstName: "Mary", LastName: "Johnson"},
		{ID: "4", FirstName: "Pete", LastName: "Ray"},
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"1", "2", "3", "4"}},
		{"  ", []string{"1", "2", "3", "4"}},
		{"joh", []string{"1", "2", "3"}},
		{"JOHN", []string{"1", "3"}},
		{"n smi", []string{"1"}},
		{"zed", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := []string{}
			for _, st := range MatchStudents(students, tt.query) {
				got = append(got, st.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
