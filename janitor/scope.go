package janitor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReleaseTimeout bounds how long Release spends destroying handles
const ReleaseTimeout = 30 * time.Second

// ErrReleased is returned when registering into a scope that was already released
var ErrReleased = errors.New("scope already released")

// Handle is a sandbox resource that must be destroyed with its scope
type Handle interface {
	ID() string
	Destroy(ctx context.Context) error
}

// Scope is the set of ephemeral artifacts owned by one request
type Scope struct {
	token  string
	dir    string
	logger *zap.Logger

	mu       sync.Mutex
	paths    []string
	handles  []Handle
	released bool
	once     sync.Once
}

// Token returns the scope's unique token
func (s *Scope) Token() string {
	return s.token
}

// Dir returns the scope's private directory
func (s *Scope) Dir() string {
	return s.dir
}

// File returns a path inside the scope directory for name and registers it
func (s *Scope) File(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid scope file name %q", name)
	}
	path := filepath.Join(s.dir, name)
	if err := s.TrackPath(path); err != nil {
		return "", err
	}
	return path, nil
}

// WriteFile creates name inside the scope with content and registers it
func (s *Scope) WriteFile(name, content string) (string, error) {
	path, err := s.File(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil { //nolint:gosec // Sandboxes must read sources
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}

// Mkdir creates a subdirectory inside the scope and registers it
func (s *Scope) Mkdir(name string) (string, error) {
	path, err := s.File(name)
	if err != nil {
		return "", err
	}
	if err := os.Mkdir(path, 0o777); err != nil && !errors.Is(err, fs.ErrExist) { //nolint:gosec // Sandboxes must write build output
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	_ = os.Chmod(path, 0o777) //nolint:gosec // umask may have narrowed it
	return path, nil
}

// TrackPath registers a filesystem path for removal on release
func (s *Scope) TrackPath(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}
	s.paths = append(s.paths, path)
	return nil
}

// TrackHandle registers a sandbox handle for destruction on release
func (s *Scope) TrackHandle(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}
	s.handles = append(s.handles, h)
	return nil
}

// Release destroys every registered handle, then removes every registered path,
// both in reverse registration order. It runs at most once; later calls return
// immediately. Failures are logged and never returned. Cancellation of ctx does
// not stop the release.
func (s *Scope) Release(ctx context.Context) {
	s.once.Do(func() {
		s.mu.Lock()
		s.released = true
		handles := s.handles
		paths := s.paths
		s.handles, s.paths = nil, nil
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ReleaseTimeout)
		defer cancel()

		for i := len(handles) - 1; i >= 0; i-- {
			if err := handles[i].Destroy(ctx); err != nil {
				s.logger.Warn("Failed to destroy sandbox handle",
					zap.String("handle", handles[i].ID()), zap.Error(err))
			}
		}

		for i := len(paths) - 1; i >= 0; i-- {
			if err := os.RemoveAll(paths[i]); err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("Failed to remove ephemeral path",
					zap.String("path", paths[i]), zap.Error(err))
			}
		}

		s.logger.Debug("Released scope",
			zap.Int("handles", len(handles)), zap.Int("paths", len(paths)))
	})
}
