package bench

import (
	"os"
	"sync"

	"github.com/wippyai/wasm-bench/errors"
)

// The working directory is process-wide.
var workdirMu sync.Mutex

// InDir runs fn with dir as the process working directory and restores the
// previous one afterwards. Failing to restore is a fatal harness error.
func InDir(dir string, fn func() error) (err error) {
	workdirMu.Lock()
	defer workdirMu.Unlock()

	prev, err := os.Getwd()
	if err != nil {
		return errors.IO(errors.PhaseHarness, "get working directory", err)
	}
	if err := os.Chdir(dir); err != nil {
		return errors.IO(errors.PhaseHarness, "enter "+dir, err)
	}
	defer func() {
		if rerr := os.Chdir(prev); rerr != nil {
			err = errors.Fatal("restore working directory "+prev, rerr)
		}
	}()
	return fn()
}
