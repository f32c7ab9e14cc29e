package staging

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"gnssprep/internal/logging"
	"gnssprep/internal/services"
)

const (
	runPrefix    = "run-"
	lockFileName = ".lock"
	archivesDir  = "archives"
	extractedDir = "extracted"
)

// Area is a run-scoped extraction workspace. Archives holds top-level archive
// contents and Extracted holds the contents of archives nested inside them.
// The directory tree is held under an advisory lock until Release.
type Area struct {
	ID        string
	Root      string
	Archives  string
	Extracted string

	lock   *flock.Flock
	logger *slog.Logger
}

// Acquire creates a fresh area under parent. Failure to create or lock the
// directories is a fatal staging error.
func Acquire(parent string, logger *slog.Logger) (*Area, error) {
	parent = strings.TrimSpace(parent)
	if parent == "" {
		parent = os.TempDir()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	id := uuid.NewString()
	root := filepath.Join(parent, runPrefix+id)
	area := &Area{
		ID:        id,
		Root:      root,
		Archives:  filepath.Join(root, archivesDir),
		Extracted: filepath.Join(root, extractedDir),
		logger:    logger,
	}
	for _, dir := range []string{area.Archives, area.Extracted} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = os.RemoveAll(root)
			return nil, services.Wrap(services.ErrConfiguration, "unpack", "create staging", "staging directory not writable", err)
		}
	}
	area.lock = flock.New(filepath.Join(root, lockFileName))
	ok, err := area.lock.TryLock()
	if err != nil || !ok {
		_ = os.RemoveAll(root)
		if err == nil {
			err = errors.New("lock held by another process")
		}
		return nil, services.Wrap(services.ErrConfiguration, "unpack", "lock staging", root, err)
	}
	logger.Debug("staging area acquired",
		logging.String("path", root),
		logging.String(logging.FieldEventType, "staging_acquired"),
	)
	return area, nil
}

// Release unlocks and removes the whole area. It is safe to call more than once.
func (a *Area) Release() error {
	if a == nil || a.Root == "" {
		return nil
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
		a.lock = nil
	}
	if err := os.RemoveAll(a.Root); err != nil {
		a.logger.Warn("failed to remove staging area",
			logging.String("path", a.Root),
			logging.Error(err),
			logging.String(logging.FieldEventType, "staging_release_failed"),
			logging.String(logging.FieldErrorHint, "remove it with gnssprep staging clean --all"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
		return fmt.Errorf("remove staging area: %w", err)
	}
	a.logger.Debug("staging area released",
		logging.String("path", a.Root),
		logging.String(logging.FieldEventType, "staging_released"),
	)
	return nil
}

// inUse reports whether a live process still holds the area at dir.
func inUse(dir string) bool {
	lockPath := filepath.Join(dir, lockFileName)
	if _, err := os.Stat(lockPath); err != nil {
		return false
	}
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return true
	}
	if !ok {
		return true
	}
	_ = lock.Unlock()
	return false
}
