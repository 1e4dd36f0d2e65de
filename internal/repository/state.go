package repository

import (
	"errors"
	"fmt"

	"bitunix-tradezella-sync/internal/logger"
	"bitunix-tradezella-sync/internal/model"
)

// ErrStateCorrupt reports an unreadable or invalid sync state file. The run
// must stop instead of silently restarting from the default boundary, which
// would duplicate the whole exported history.
var ErrStateCorrupt = errors.New("sync state corrupt")

// StateRepository persists the export watermark between runs.
type StateRepository struct {
	storage *Storage
	path    string
}

func NewStateRepository(storage *Storage, path string) *StateRepository {
	return &StateRepository{
		storage: storage,
		path:    path,
	}
}

// Load returns the stored watermark, or fallback when no state file exists
// yet (first run).
func (r *StateRepository) Load(fallback model.Watermark) (model.Watermark, error) {
	var w model.Watermark
	found, err := r.storage.Read(r.path, &w)
	if err != nil {
		return model.Watermark{}, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}
	if !found {
		logger.Info("No sync state found, starting from configured boundary",
			"state_file", r.path,
			"start_ms", fallback.LastTime,
		)
		return fallback, nil
	}
	if w.LastTime < 0 {
		return model.Watermark{}, fmt.Errorf("%w: negative last_time %d in %s", ErrStateCorrupt, w.LastTime, r.path)
	}
	return w, nil
}

// Save commits the watermark. The write replaces the state file atomically.
func (r *StateRepository) Save(w model.Watermark) error {
	return r.storage.Write(r.path, w)
}
