package gateway

import (
	"fmt"
	"io"

	"school-journal/internal/config"
	"school-journal/pkg/errors"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the Store selected by store.driver. The returned closer
// releases any connection the store holds.
func Open(cfg *config.Config) (Store, io.Closer, error) {
	switch cfg.Store.Driver {
	case config.DriverREST:
		return NewRESTStore(cfg.Store.REST), nopCloser{}, nil
	case config.DriverMySQL:
		db, err := NewMySQLConnection(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return NewMySQLStore(db), db, nil
	case config.DriverMemory:
		return NewMemoryStore(), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedStoreDriver, cfg.Store.Driver)
	}
}
