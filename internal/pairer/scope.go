package pairer

import (
	"fmt"
	"os"
	"sync"
)

// TempScope is a directory owned by exactly one listing. Release removes it
// and is safe to call any number of times from any exit path.
type TempScope struct {
	dir  string
	once sync.Once
	err  error
}

// NewTempScope creates dir, removing any leftover from a previous run first.
func NewTempScope(dir string) (*TempScope, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clear temp scope %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp scope %s: %w", dir, err)
	}
	return &TempScope{dir: dir}, nil
}

// Dir returns the scope directory.
func (s *TempScope) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Release removes the scope directory. Only the first call does any work.
func (s *TempScope) Release() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		s.err = os.RemoveAll(s.dir)
	})
	return s.err
}
