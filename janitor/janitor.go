package janitor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/codecheck/config"
)

// ScopePrefix prefixes every scope directory under the root
const ScopePrefix = "req-"

const maxCorrelationLen = 32

var unsafeTokenChars = regexp.MustCompile(`[^A-Za-z0-9-]`)

// Janitor allocates request scopes and sweeps orphans from the shared root
type Janitor struct {
	root      string
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time

	counter atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Janitor
type Option func(*Janitor)

// WithClock overrides the clock used by Sweep
func WithClock(now func() time.Time) Option {
	return func(j *Janitor) {
		j.now = now
	}
}

// New creates the ephemeral root and returns a Janitor for it
func New(root string, interval, retention time.Duration, logger *zap.Logger, opts ...Option) (*Janitor, error) {
	if root == "" {
		return nil, errors.New("janitor root must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// Scope directories are bind-mounted directly, so the root itself can stay private.
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create ephemeral root %s: %w", root, err)
	}

	j := &Janitor{
		root:      root,
		interval:  interval,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// NewFromConfig creates a Janitor from application configuration
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (*Janitor, error) {
	return New(cfg.Janitor.Root, cfg.SweepInterval(), cfg.Retention(), logger)
}

// Root returns the shared ephemeral root
func (j *Janitor) Root() string {
	return j.root
}

// Allocate creates a new scope for one request. The scope token combines the
// caller's correlation id with a process-wide counter, so concurrent requests
// never share a directory even when they carry the same id.
func (j *Janitor) Allocate(correlationID string) (*Scope, error) {
	token := j.token(correlationID)
	dir := filepath.Join(j.root, ScopePrefix+token)

	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create scope directory: %w", err)
	}
	// Sandboxes run as an unprivileged user and must be able to write build output.
	if err := os.Chmod(dir, 0o777); err != nil { //nolint:gosec // Scope is private to one request
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to set scope directory permissions: %w", err)
	}

	scope := &Scope{
		token:  token,
		dir:    dir,
		logger: j.logger.With(zap.String("scope", token)),
	}
	scope.paths = append(scope.paths, dir)

	j.logger.Debug("Allocated scope", zap.String("scope", token), zap.String("dir", dir))
	return scope, nil
}

func (j *Janitor) token(correlationID string) string {
	id := unsafeTokenChars.ReplaceAllString(correlationID, "")
	if id == "" {
		id = uuid.NewString()
	}
	if len(id) > maxCorrelationLen {
		id = id[:maxCorrelationLen]
	}
	return id + "-" + strconv.FormatUint(j.counter.Add(1), 36)
}

// Sweep removes root entries whose modification time is older than the
// retention threshold and returns how many it removed. Entries that vanish
// mid-sweep are skipped.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(j.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to scan ephemeral root %s: %w", j.root, err)
	}

	cutoff := j.now().Add(-j.retention)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(j.root, entry.Name())
		if err := os.RemoveAll(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			j.logger.Warn("Failed to remove orphaned entry", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info("Swept orphaned ephemeral entries", zap.Int("count", removed))
	}
	return removed, nil
}

// Start launches the background sweep. Calling Start on a running janitor is a no-op.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cancel != nil || j.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.done = make(chan struct{})

	go j.loop(ctx, j.done)
	j.logger.Info("Started ephemeral sweep",
		zap.String("root", j.root),
		zap.Duration("interval", j.interval),
		zap.Duration("retention", j.retention))
}

// Stop halts the background sweep and waits for it to exit or for ctx to end
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Janitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				j.logger.Warn("Ephemeral sweep failed", zap.Error(err))
			}
		}
	}
}
