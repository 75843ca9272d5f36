package janitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockHandle records destruction for tests
type MockHandle struct {
	id        string
	err       error
	destroyed int
	ctxErr    error
	order     *[]string
}

func (m *MockHandle) ID() string { return m.id }

func (m *MockHandle) Destroy(ctx context.Context) error {
	m.destroyed++
	m.ctxErr = ctx.Err()
	if m.order != nil {
		*m.order = append(*m.order, m.id)
	}
	return m.err
}

func newTestJanitor(t *testing.T, opts ...Option) *Janitor {
	t.Helper()
	j, err := New(filepath.Join(t.TempDir(), "root"), time.Hour, time.Minute, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	return j
}

func TestNew(t *testing.T) {
	t.Run("CreatesRoot", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "nested", "root")
		j, err := New(root, time.Hour, time.Minute, nil)
		require.NoError(t, err)
		assert.Equal(t, root, j.Root())
		assert.DirExists(t, root)
	})

	t.Run("EmptyRoot", func(t *testing.T) {
		_, err := New("", time.Hour, time.Minute, nil)
		require.Error(t, err)
	})
}

func TestAllocate(t *testing.T) {
	t.Run("CreatesPrivateDirectory", func(t *testing.T) {
		j := newTestJanitor(t)

		scope, err := j.Allocate("abc-123")
		require.NoError(t, err)
		assert.DirExists(t, scope.Dir())
		assert.Equal(t, j.Root(), filepath.Dir(scope.Dir()))
		assert.Contains(t, scope.Token(), "abc-123")
		assert.Equal(t, ScopePrefix+scope.Token(), filepath.Base(scope.Dir()))
	})

	t.Run("SanitizesCorrelationID", func(t *testing.T) {
		j := newTestJanitor(t)

		scope, err := j.Allocate("../../etc/passwd")
		require.NoError(t, err)
		assert.NotContains(t, scope.Token(), "/")
		assert.NotContains(t, scope.Token(), ".")
		assert.Equal(t, j.Root(), filepath.Dir(scope.Dir()))
	})

	t.Run("EmptyCorrelationID", func(t *testing.T) {
		j := newTestJanitor(t)

		scope, err := j.Allocate("")
		require.NoError(t, err)
		assert.NotEmpty(t, scope.Token())
	})

	t.Run("ConcurrentSameIDNeverCollides", func(t *testing.T) {
		j := newTestJanitor(t)

		const n = 50
		var wg sync.WaitGroup
		tokens := make(chan string, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				scope, err := j.Allocate("same-request")
				if assert.NoError(t, err) {
					tokens <- scope.Token()
				}
			}()
		}
		wg.Wait()
		close(tokens)

		seen := map[string]bool{}
		for token := range tokens {
			assert.False(t, seen[token], "duplicate token %s", token)
			seen[token] = true
		}
		assert.Len(t, seen, n)
	})
}

func TestScope(t *testing.T) {
	t.Run("ReleaseRemovesEverything", func(t *testing.T) {
		j := newTestJanitor(t)
		scope, err := j.Allocate("req")
		require.NoError(t, err)

		src, err := scope.WriteFile("main.c", "int main(void){return 0;}")
		require.NoError(t, err)
		classes, err := scope.Mkdir("classes")
		require.NoError(t, err)

		outside := filepath.Join(t.TempDir(), "extra.txt")
		require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))
		require.NoError(t, scope.TrackPath(outside))

		var order []string
		first := &MockHandle{id: "first", order: &order}
		second := &MockHandle{id: "second", order: &order}
		require.NoError(t, scope.TrackHandle(first))
		require.NoError(t, scope.TrackHandle(second))

		scope.Release(context.Background())

		assert.NoFileExists(t, src)
		assert.NoDirExists(t, classes)
		assert.NoDirExists(t, scope.Dir())
		assert.NoFileExists(t, outside)
		assert.Equal(t, []string{"second", "first"}, order)
	})

	t.Run("ReleaseRunsOnce", func(t *testing.T) {
		j := newTestJanitor(t)
		scope, err := j.Allocate("req")
		require.NoError(t, err)

		h := &MockHandle{id: "container"}
		require.NoError(t, scope.TrackHandle(h))

		scope.Release(context.Background())
		scope.Release(context.Background())
		assert.Equal(t, 1, h.destroyed)
	})

	t.Run("ReleaseToleratesFailures", func(t *testing.T) {
		j := newTestJanitor(t)
		scope, err := j.Allocate("req")
		require.NoError(t, err)

		failing := &MockHandle{id: "gone", err: errors.New("no such container")}
		require.NoError(t, scope.TrackHandle(failing))
		require.NoError(t, scope.TrackPath(filepath.Join(t.TempDir(), "never-created")))

		assert.NotPanics(t, func() { scope.Release(context.Background()) })
		assert.Equal(t, 1, failing.destroyed)
		assert.NoDirExists(t, scope.Dir())
	})

	t.Run("ReleaseIgnoresCallerCancellation", func(t *testing.T) {
		j := newTestJanitor(t)
		scope, err := j.Allocate("req")
		require.NoError(t, err)

		h := &MockHandle{id: "container"}
		require.NoError(t, scope.TrackHandle(h))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		scope.Release(ctx)

		assert.Equal(t, 1, h.destroyed)
		assert.NoError(t, h.ctxErr)
	})

	t.Run("TrackAfterRelease", func(t *testing.T) {
		j := newTestJanitor(t)
		scope, err := j.Allocate("req")
		require.NoError(t, err)
		scope.Release(context.Background())

		assert.ErrorIs(t, scope.TrackPath("/tmp/x"), ErrReleased)
		assert.ErrorIs(t, scope.TrackHandle(&MockHandle{id: "late"}), ErrReleased)
	})

	t.Run("FileRejectsTraversal", func(t *testing.T) {
		j := newTestJanitor(t)
		scope, err := j.Allocate("req")
		require.NoError(t, err)
		defer scope.Release(context.Background())

		for _, name := range []string{"", "../escape", "a/b", ".hidden", ".."} {
			_, err := scope.File(name)
			assert.Error(t, err, name)
		}
	})
}

func TestSweep(t *testing.T) {
	t.Run("RemovesOnlyExpiredEntries", func(t *testing.T) {
		now := time.Now()
		j := newTestJanitor(t, WithClock(func() time.Time { return now }))

		stale, err := j.Allocate("stale")
		require.NoError(t, err)
		fresh, err := j.Allocate("fresh")
		require.NoError(t, err)

		old := now.Add(-2 * time.Minute)
		require.NoError(t, os.Chtimes(stale.Dir(), old, old))

		removed, err := j.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
		assert.NoDirExists(t, stale.Dir())
		assert.DirExists(t, fresh.Dir())

		// Releasing a swept scope is still safe.
		assert.NotPanics(t, func() { stale.Release(context.Background()) })
		fresh.Release(context.Background())
	})

	t.Run("MissingRoot", func(t *testing.T) {
		j := newTestJanitor(t)
		require.NoError(t, os.RemoveAll(j.Root()))

		removed, err := j.Sweep(context.Background())
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

func TestStartStop(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	j, err := New(root, 10*time.Millisecond, time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)

	orphan := filepath.Join(root, ScopePrefix+"orphan")
	require.NoError(t, os.Mkdir(orphan, 0o700))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(orphan, old, old))

	j.Start()
	j.Start()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(orphan)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, j.Stop(ctx))
	require.NoError(t, j.Stop(ctx))
}
