package writequeue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	online   atomic.Bool
	restored chan struct{}
}

func newFakeConn(online bool) *fakeConn {
	c := &fakeConn{restored: make(chan struct{}, 1)}
	c.online.Store(online)
	return c
}

func (c *fakeConn) Online() bool { return c.online.Load() }

func (c *fakeConn) Restored() <-chan struct{} { return c.restored }

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() string { return fmt.Sprintf("e-%d", s.n.Add(1)) }

type recordingSender struct {
	mu        sync.Mutex
	delivered []Entry
	fail      func(Entry) error
}

func (s *recordingSender) Send(_ context.Context, e Entry) error {
	if s.fail != nil {
		if err := s.fail(e); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, e)
	return nil
}

func (s *recordingSender) targets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.delivered))
	for i, e := range s.delivered {
		out[i] = e.Target
	}
	return out
}

func TestEnqueueOfflineThenDrainDeliversEveryEntryOnce(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn(false)
	store := NewMemoryStore()
	sender := &recordingSender{}
	q := New(store, sender, conn, &seqIDs{}, nil, Options{})

	const n = 7
	for i := 0; i < n; i++ {
		_, err := q.Enqueue(ctx, fmt.Sprintf("t%d", i), http.MethodPost, map[string]int{"i": i})
		require.NoError(t, err)
	}
	assert.Equal(t, n, q.Len())
	assert.Equal(t, n, store.Saves(), "every enqueue persists the queue")
	persisted, _ := store.Load(ctx)
	assert.Len(t, persisted, n)
	assert.Empty(t, sender.targets())

	conn.online.Store(true)
	res := q.ProcessQueue(ctx)

	assert.Equal(t, n, res.Delivered)
	assert.Zero(t, res.Remaining)
	assert.Zero(t, q.Len())
	assert.Equal(t, []string{"t0", "t1", "t2", "t3", "t4", "t5", "t6"}, sender.targets())
	persisted, _ = store.Load(ctx)
	assert.Empty(t, persisted)

	again := q.ProcessQueue(ctx)
	assert.True(t, again.Skipped)
	assert.Len(t, sender.targets(), n)
}

func TestEnqueueOnlineDeliversImmediately(t *testing.T) {
	sender := &recordingSender{}
	q := New(NewMemoryStore(), sender, newFakeConn(true), &seqIDs{}, nil, Options{})

	e, err := q.Enqueue(context.Background(), "monitoring.alert", http.MethodPost, map[string]string{"level": "info"})
	require.NoError(t, err)
	q.Flush()

	assert.Equal(t, "e-1", e.ID)
	assert.JSONEq(t, `{"level":"info"}`, string(e.Body))
	assert.Equal(t, []string{"monitoring.alert"}, sender.targets())
	assert.Zero(t, q.Len())
}

func TestEnqueueDoesNotWaitForSlowSend(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	delivered := &recordingSender{}
	sender := SenderFunc(func(ctx context.Context, e Entry) error {
		once.Do(func() { close(entered) })
		<-release
		return delivered.Send(ctx, e)
	})
	q := New(NewMemoryStore(), sender, newFakeConn(true), &seqIDs{}, nil, Options{})
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "a", http.MethodPost, nil)
	require.NoError(t, err)
	<-entered

	returned := make(chan error)
	go func() {
		_, err := q.Enqueue(ctx, "b", http.MethodPost, nil)
		returned <- err
	}()
	select {
	case err := <-returned:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked behind an in-flight send")
	}
	assert.Equal(t, 2, q.Len(), "entries stay readable during a send")

	close(release)
	q.Flush()
	assert.Equal(t, []string{"a", "b"}, delivered.targets())
	assert.Zero(t, q.Len())
}

func TestLocalTargetsDeliverWhileRemoteTargetIsOffline(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn(true)
	local := &recordingSender{}
	q := New(NewMemoryStore(), Router{
		"local":  local,
		"remote": NewHTTPSender("http://127.0.0.1:1/alerts", time.Second, func() { conn.online.Store(false) }),
	}, conn, &seqIDs{}, nil, Options{})

	_, err := q.Enqueue(ctx, "remote", http.MethodPost, "alert")
	require.NoError(t, err)
	q.Flush()
	require.False(t, conn.Online(), "network failure marks the queue offline")

	for i := 0; i < 10; i++ {
		_, err := q.Enqueue(ctx, "local", http.MethodPost, i)
		require.NoError(t, err)
	}
	q.Flush()
	for i := 0; i < 3; i++ {
		q.ProcessQueue(ctx)
	}

	assert.Len(t, local.targets(), 10)
	entries := q.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "remote", entries[0].Target)
	assert.Equal(t, 1, entries[0].RetryCount, "remote entries are not attempted while offline")
	assert.True(t, q.ProcessQueue(ctx).Skipped)
}

func TestEntryDroppedAfterRetryBudget(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn(false)
	sender := &recordingSender{fail: func(e Entry) error {
		if e.Target == "broken" {
			return ErrNetworkFailure
		}
		return nil
	}}
	q := New(NewMemoryStore(), sender, conn, &seqIDs{}, nil, Options{})

	_, err := q.Enqueue(ctx, "broken", http.MethodPost, "x")
	require.NoError(t, err)
	conn.online.Store(true)

	for attempt := 1; attempt < DefaultMaxRetries; attempt++ {
		res := q.ProcessQueue(ctx)
		require.Equal(t, 1, res.Retried, "attempt %d", attempt)
		entries := q.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, attempt, entries[0].RetryCount)
	}

	res := q.ProcessQueue(ctx)
	assert.Equal(t, 1, res.Dropped)
	assert.Zero(t, q.Len())
	assert.Empty(t, sender.targets())
}

func TestFailingEntryDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn(false)
	sender := &recordingSender{fail: func(e Entry) error {
		if e.Target == "flaky" {
			return errors.New("boom")
		}
		return nil
	}}
	q := New(NewMemoryStore(), sender, conn, &seqIDs{}, nil, Options{})
	for _, target := range []string{"a", "flaky", "b"} {
		_, err := q.Enqueue(ctx, target, http.MethodPost, nil)
		require.NoError(t, err)
	}

	conn.online.Store(true)
	res := q.ProcessQueue(ctx)

	assert.Equal(t, DrainResult{Delivered: 2, Retried: 1, Remaining: 1}, res)
	assert.Equal(t, []string{"a", "b"}, sender.targets())
	assert.Equal(t, "flaky", q.Entries()[0].Target)
}

func TestConcurrentDrainIsNoop(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	sender := SenderFunc(func(context.Context, Entry) error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	})
	conn := newFakeConn(false)
	q := New(NewMemoryStore(), sender, conn, &seqIDs{}, nil, Options{})
	_, err := q.Enqueue(ctx, "a", http.MethodPost, nil)
	require.NoError(t, err)
	conn.online.Store(true)

	done := make(chan DrainResult)
	go func() { done <- q.ProcessQueue(ctx) }()
	<-entered

	assert.True(t, q.ProcessQueue(ctx).Skipped)

	close(release)
	assert.Equal(t, 1, (<-done).Delivered)
}

func TestLoadRestoresPersistedEntries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(
		Entry{ID: "old-1", Target: "a", RetryCount: 2},
		Entry{ID: "old-2", Target: "b"},
	)
	sender := &recordingSender{}
	q := New(store, sender, newFakeConn(true), &seqIDs{}, nil, Options{})

	require.NoError(t, q.Load(ctx))
	assert.Equal(t, 2, q.Len())

	res := q.ProcessQueue(ctx)
	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, []string{"a", "b"}, sender.targets())
}

func TestRunDrainsOnConnectivityRestored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := newFakeConn(false)
	sender := &recordingSender{}
	q := New(NewMemoryStore(), sender, conn, &seqIDs{}, nil, Options{DrainInterval: time.Hour})
	_, err := q.Enqueue(ctx, "a", http.MethodPost, nil)
	require.NoError(t, err)

	stopped := make(chan struct{})
	go func() {
		_ = q.Run(ctx)
		close(stopped)
	}()

	conn.online.Store(true)
	conn.restored <- struct{}{}

	assert.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-stopped
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "queue.json"))

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	want := []Entry{{ID: "1", Target: "a", Method: http.MethodPost, Body: []byte(`{"x":1}`), RetryCount: 3}}
	require.NoError(t, store.Save(ctx, want))

	got, err := NewFileStore(store.path).Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Target)
	assert.Equal(t, 3, got[0].RetryCount)
	assert.JSONEq(t, `{"x":1}`, string(got[0].Body))

	require.NoError(t, store.Save(ctx, nil))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHTTPSender(t *testing.T) {
	var gotKey, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	e := Entry{ID: "e-9", Method: http.MethodPost, Body: []byte(`{"a":1}`)}
	require.NoError(t, NewHTTPSender(srv.URL+"/ok", time.Second, nil).Send(context.Background(), e))
	assert.Equal(t, "e-9", gotKey)
	assert.Equal(t, `{"a":1}`, gotBody)

	assert.Error(t, NewHTTPSender(srv.URL+"/fail", time.Second, nil).Send(context.Background(), e))

	offline := false
	unreachable := NewHTTPSender("http://127.0.0.1:1/x", time.Second, func() { offline = true })
	err := unreachable.Send(context.Background(), e)
	assert.ErrorIs(t, err, ErrNetworkFailure)
	assert.True(t, offline)
}

func TestRouterUnknownTarget(t *testing.T) {
	r := Router{"a": SenderFunc(func(context.Context, Entry) error { return nil })}
	assert.NoError(t, r.Send(context.Background(), Entry{Target: "a"}))
	assert.ErrorIs(t, r.Send(context.Background(), Entry{Target: "zzz"}), ErrUnknownTarget)
}
