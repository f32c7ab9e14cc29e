package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrRunInProgress is returned when another process is already writing the
// same output directory.
var ErrRunInProgress = errors.New("another run is using this output directory")

// outputLock serializes runs that target the same directory. Lock files live
// under the state directory so output trees stay free of bookkeeping files.
type outputLock struct {
	path  string
	flock *flock.Flock
}

func acquireOutputLock(stateDir, target string) (*outputLock, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", target, err)
	}
	sum := sha256.Sum256([]byte(abs))
	dir := filepath.Join(stateDir, "locks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(dir, hex.EncodeToString(sum[:8])+".lock")
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, abs)
	}
	return &outputLock{path: path, flock: lock}, nil
}

func (l *outputLock) release() {
	if l == nil || l.flock == nil {
		return
	}
	_ = l.flock.Unlock()
}
