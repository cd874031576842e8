// Package mergestate saves and restores the three files that mark an
// in-progress git merge: MERGE_HEAD, MERGE_MODE, and MERGE_MSG.
package mergestate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// names are the merge-metadata files, in the order they are read, written,
// and restored.
var names = [3]string{"MERGE_HEAD", "MERGE_MODE", "MERGE_MSG"}

// Status holds the raw contents of the three merge-metadata files. A nil
// field means the corresponding file did not exist when captured.
type Status struct {
	MergeHead []byte
	MergeMode []byte
	MergeMsg  []byte
}

func (s *Status) field(i int) *[]byte {
	switch i {
	case 0:
		return &s.MergeHead
	case 1:
		return &s.MergeMode
	default:
		return &s.MergeMsg
	}
}

// Read captures the current merge state from the repository's git
// directory. A missing file is recorded as absent (nil), not an error; any
// other read failure is fatal.
func Read(gitDir string) (Status, error) {
	var s Status
	for i, name := range names {
		data, err := os.ReadFile(filepath.Join(gitDir, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Status{}, fmt.Errorf("read %s: %w", name, err)
		}
		*s.field(i) = data
	}
	return s, nil
}

// Write overwrites (or creates) the given merge-metadata file with data.
func Write(gitDir, name string, data []byte) error {
	path := filepath.Join(gitDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // matches git's own mode for these files
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Restore writes all three merge-metadata files back to the values in s,
// skipping fields that were absent at capture time. Every write is
// attempted before the first error is returned (best-effort restore); it
// does not short-circuit on the first failure.
func Restore(gitDir string, s Status) error {
	var firstErr error
	for i, name := range names {
		data := *s.field(i)
		if data == nil {
			continue
		}
		if err := Write(gitDir, name, data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
