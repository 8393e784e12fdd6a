package health

import (
	"context"
	"fmt"
	"os"
)

const probePattern = ".health-*"

// DirChecker verifies that a storage directory exists and accepts writes.
type DirChecker struct {
	name string
	dir  string
}

// NewDirChecker creates a checker for dir. The directory is created on the
// first check if it does not exist.
func NewDirChecker(name, dir string) *DirChecker {
	return &DirChecker{name: name, dir: dir}
}

// Name returns the name of this checker.
func (d *DirChecker) Name() string {
	return d.name
}

// Check writes and removes a probe file in the directory.
func (d *DirChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	details := map[string]any{"dir": d.dir}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return Unhealthy("directory unavailable", fmt.Errorf("%w: %w", ErrCheckFailed, err)).WithDetails(details)
	}

	f, err := os.CreateTemp(d.dir, probePattern)
	if err != nil {
		return Unhealthy("directory not writable", fmt.Errorf("%w: %w", ErrCheckFailed, err)).WithDetails(details)
	}
	name := f.Name()
	_, werr := f.Write([]byte{0})
	cerr := f.Close()
	rerr := os.Remove(name)

	for _, err := range []error{werr, cerr, rerr} {
		if err != nil {
			return Unhealthy("directory not writable", fmt.Errorf("%w: %w", ErrCheckFailed, err)).WithDetails(details)
		}
	}

	return Healthy("writable").WithDetails(details)
}
