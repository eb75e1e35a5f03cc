package journal

import (
	"sync"

	"school-journal/internal/logger"
	"school-journal/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry keeps the open journal sessions of a process.
type Registry struct {
	remote Remote
	opts   Options

	mu       sync.RWMutex
	sessions map[string]*Session

	log zerolog.Logger
}

func NewRegistry(remote Remote, opts Options) *Registry {
	return &Registry{
		remote:   remote,
		opts:     opts,
		sessions: make(map[string]*Session),
		log:      logger.Component("registry"),
	}
}

func (r *Registry) Open() *Session {
	s := NewSession(uuid.NewString(), r.remote, r.opts)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	r.log.Debug().Str("session_id", s.ID()).Msg("Journal session opened")
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return errors.ErrSessionNotFound
	}
	s.Close()
	r.log.Debug().Str("session_id", id).Msg("Journal session closed")
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every open session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
