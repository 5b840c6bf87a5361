package querycache_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-agency-admin/clock"
	"github.com/jrsteele09/go-agency-admin/querycache"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

var testPolicy = querycache.StaticPolicy(querycache.Options{
	StaleAfter: 30 * time.Second,
	KeepAlive:  5 * time.Minute,
})

// backend counts fetches per key and can hold them until released.
type backend struct {
	mu      sync.Mutex
	calls   map[string]int
	version int
	gate    chan struct{}
	entered chan string
	err     error
}

func newBackend() *backend {
	return &backend{calls: make(map[string]int), entered: make(chan string, 64)}
}

func (b *backend) fetcher(key querycache.Key) querycache.Fetcher {
	return func(ctx context.Context) (any, error) {
		b.mu.Lock()
		b.calls[key.String()]++
		gate, err := b.gate, b.err
		b.mu.Unlock()

		b.entered <- key.String()
		if gate != nil {
			<-gate
		}
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		return key.String() + "@" + string(rune('0'+b.version)), nil
	}
}

func (b *backend) Calls(key querycache.Key) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key.String()]
}

func (b *backend) hold() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = make(chan struct{})
	return b.gate
}

func (b *backend) bump() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.version++
}

func read(t *testing.T, c *querycache.Cache, b *backend, key querycache.Key) any {
	t.Helper()
	data, err := c.Read(context.Background(), key, b.fetcher(key), querycache.Options{})
	require.NoError(t, err)
	return data
}

func TestKey(t *testing.T) {
	list := querycache.NewKey("customers")
	filtered := list.With(url.Values{"city": {"Lisbon"}, "active": {"true"}})

	require.Equal(t, querycache.Key{"customers", "active=true&city=Lisbon"}, filtered)
	require.Equal(t, querycache.Key{"customers"}, list, "With does not modify the receiver")
	require.Equal(t, list, list.With(nil))
	require.True(t, filtered.HasPrefix(list))
	require.False(t, list.HasPrefix(filtered))
	require.False(t, querycache.NewKey("customer", "42").HasPrefix(list))
	require.Equal(t, `["customer","42"]`, querycache.NewKey("customer", "42").String())
	require.Equal(t, "customer", querycache.NewKey("customer", "42").Resource())
}

func TestCache_Read(t *testing.T) {
	clk := clock.Fake(t0)
	c := querycache.New(clk, testPolicy)
	b := newBackend()
	key := querycache.NewKey("customers")

	require.Equal(t, `["customers"]@0`, read(t, c, b, key))
	require.Equal(t, `["customers"]@0`, read(t, c, b, key))
	require.Equal(t, 1, b.Calls(key), "fresh data is served from cache")

	b.bump()
	clk.Advance(31 * time.Second)
	require.Equal(t, `["customers"]@1`, read(t, c, b, key))
	require.Equal(t, 2, b.Calls(key))
}

func TestCache_ReadOptionsOverridePolicy(t *testing.T) {
	clk := clock.Fake(t0)
	c := querycache.New(clk, testPolicy)
	b := newBackend()
	key := querycache.NewKey("config", "countries")

	_, err := c.Read(context.Background(), key, b.fetcher(key), querycache.Options{StaleAfter: 30 * time.Minute})
	require.NoError(t, err)
	clk.Advance(10 * time.Minute)
	read(t, c, b, key)
	require.Equal(t, 1, b.Calls(key))
}

func TestCache_ConcurrentReadsShareFetch(t *testing.T) {
	c := querycache.New(clock.Fake(t0), testPolicy)
	b := newBackend()
	release := b.hold()
	key := querycache.NewKey("bookings")

	const readers = 8
	results := make(chan any, readers)
	for range readers {
		go func() {
			data, err := c.Read(context.Background(), key, b.fetcher(key), querycache.Options{})
			require.NoError(t, err)
			results <- data
		}()
	}
	<-b.entered
	time.Sleep(50 * time.Millisecond)
	close(release)

	for range readers {
		require.Equal(t, `["bookings"]@0`, <-results)
	}
	require.Equal(t, 1, b.Calls(key))
}

func TestCache_WriteInvalidatesDeclaredKeys(t *testing.T) {
	ctx := context.Background()
	c := querycache.New(clock.Fake(t0), testPolicy)
	b := newBackend()
	items := querycache.NewKey("items")
	item42 := querycache.NewKey("item", "42")
	item43 := querycache.NewKey("item", "43")

	for _, key := range []querycache.Key{items, item42, item43} {
		read(t, c, b, key)
	}

	err := c.Write(ctx, []querycache.Key{items, item42}, func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	for _, key := range []querycache.Key{items, item42, item43} {
		read(t, c, b, key)
	}
	require.Equal(t, 2, b.Calls(items))
	require.Equal(t, 2, b.Calls(item42))
	require.Equal(t, 1, b.Calls(item43))
}

func TestCache_FailedWriteInvalidatesNothing(t *testing.T) {
	ctx := context.Background()
	c := querycache.New(clock.Fake(t0), testPolicy)
	b := newBackend()
	items := querycache.NewKey("items")
	read(t, c, b, items)

	boom := errors.New("validation failed")
	err := c.Write(ctx, []querycache.Key{items}, func(ctx context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	read(t, c, b, items)
	require.Equal(t, 1, b.Calls(items))
}

func TestCache_InvalidateByPrefix(t *testing.T) {
	c := querycache.New(clock.Fake(t0), testPolicy)
	b := newBackend()
	lisbon := querycache.NewKey("customers").With(url.Values{"city": {"Lisbon"}})
	porto := querycache.NewKey("customers").With(url.Values{"city": {"Porto"}})
	detail := querycache.NewKey("customer", "1")
	for _, key := range []querycache.Key{lisbon, porto, detail} {
		read(t, c, b, key)
	}

	require.Equal(t, 2, c.Invalidate(querycache.NewKey("customers")))

	_, fresh, ok := c.Peek(lisbon)
	require.True(t, ok)
	require.False(t, fresh)
	_, fresh, _ = c.Peek(detail)
	require.True(t, fresh)
}

func TestCache_InvalidationDuringFetchLeavesEntryStale(t *testing.T) {
	c := querycache.New(clock.Fake(t0), testPolicy)
	b := newBackend()
	release := b.hold()
	key := querycache.NewKey("payments")

	done := make(chan any, 1)
	go func() {
		done <- read(t, c, b, key)
	}()
	<-b.entered
	require.Equal(t, 1, c.Invalidate(key))
	close(release)
	require.Equal(t, `["payments"]@0`, <-done)

	_, fresh, ok := c.Peek(key)
	require.True(t, ok)
	require.False(t, fresh, "data fetched before the invalidation is stale")

	read(t, c, b, key)
	require.Equal(t, 2, b.Calls(key))
}

func TestCache_SubscribersRefetchOnInvalidate(t *testing.T) {
	c := querycache.New(clock.Fake(t0), testPolicy)
	b := newBackend()
	key := querycache.NewKey("vehicles")

	sub := c.Subscribe(key, b.fetcher(key), querycache.Options{})
	defer sub.Close()
	require.Equal(t, `["vehicles"]@0`, nextUpdate(t, sub).Data)

	b.bump()
	c.Invalidate(querycache.NewKey("vehicles"))
	require.Equal(t, `["vehicles"]@1`, nextUpdate(t, sub).Data)
	require.Equal(t, 2, b.Calls(key))

	// A second subscriber of fresh data gets it without a fetch.
	other := c.Subscribe(key, b.fetcher(key), querycache.Options{})
	defer other.Close()
	require.Equal(t, `["vehicles"]@1`, nextUpdate(t, other).Data)
	require.Equal(t, 2, b.Calls(key))
}

func TestCache_SubscriberSeesFetchErrors(t *testing.T) {
	c := querycache.New(clock.Fake(t0), testPolicy)
	b := newBackend()
	b.err = errors.New("backend down")
	key := querycache.NewKey("staff")

	sub := c.Subscribe(key, b.fetcher(key), querycache.Options{})
	defer sub.Close()
	update := nextUpdate(t, sub)
	require.ErrorContains(t, update.Err, "backend down")
}

func TestCache_KeepAlive(t *testing.T) {
	t.Run("unused entry is evicted", func(t *testing.T) {
		clk := clock.Fake(t0)
		c := querycache.New(clk, testPolicy)
		b := newBackend()
		read(t, c, b, querycache.NewKey("suppliers"))

		clk.Advance(5*time.Minute - time.Second)
		require.Equal(t, 1, c.Len())
		clk.Advance(2 * time.Second)
		require.Zero(t, c.Len())
	})

	t.Run("subscribed entry is retained", func(t *testing.T) {
		clk := clock.Fake(t0)
		c := querycache.New(clk, testPolicy)
		b := newBackend()
		key := querycache.NewKey("suppliers")

		sub := c.Subscribe(key, b.fetcher(key), querycache.Options{})
		nextUpdate(t, sub)
		clk.Advance(time.Hour)
		require.Equal(t, 1, c.Len())

		sub.Close()
		clk.Advance(5*time.Minute - time.Second)
		require.Equal(t, 1, c.Len())
		clk.Advance(2 * time.Second)
		require.Zero(t, c.Len())
	})

	t.Run("entry being refetched is retained", func(t *testing.T) {
		clk := clock.Fake(t0)
		c := querycache.New(clk, testPolicy)
		b := newBackend()
		key := querycache.NewKey("suppliers")
		read(t, c, b, key)
		<-b.entered

		clk.Advance(5*time.Minute - time.Second)
		release := b.hold()
		errs := make(chan error, 1)
		go func() {
			_, err := c.Read(context.Background(), key, b.fetcher(key), querycache.Options{})
			errs <- err
		}()
		<-b.entered

		// The original keep-alive deadline passes while the caller waits.
		clk.Advance(2 * time.Second)
		close(release)
		require.NoError(t, <-errs)

		_, fresh, ok := c.Peek(key)
		require.True(t, ok)
		require.True(t, fresh)
		read(t, c, b, key)
		require.Equal(t, 2, b.Calls(key))

		clk.Advance(5 * time.Minute)
		require.Zero(t, c.Len(), "keep-alive restarts after the refetch")
	})

	t.Run("failed refetch still expires", func(t *testing.T) {
		clk := clock.Fake(t0)
		c := querycache.New(clk, testPolicy)
		b := newBackend()
		key := querycache.NewKey("suppliers")
		read(t, c, b, key)

		clk.Advance(time.Minute)
		b.mu.Lock()
		b.err = errors.New("backend down")
		b.mu.Unlock()
		_, err := c.Read(context.Background(), key, b.fetcher(key), querycache.Options{})
		require.Error(t, err)

		clk.Advance(5*time.Minute - time.Second)
		require.Equal(t, 1, c.Len())
		clk.Advance(2 * time.Second)
		require.Zero(t, c.Len())
	})
}

func TestCache_CloseDoesNotCancelFetch(t *testing.T) {
	c := querycache.New(clock.Fake(t0), testPolicy)
	b := newBackend()
	release := b.hold()
	key := querycache.NewKey("packages")

	sub := c.Subscribe(key, b.fetcher(key), querycache.Options{})
	<-b.entered
	sub.Close()
	close(release)

	require.Eventually(t, func() bool {
		data, fresh, ok := c.Peek(key)
		return ok && fresh && data == `["packages"]@0`
	}, time.Second, time.Millisecond)
}

func TestCache_CallerCancellation(t *testing.T) {
	c := querycache.New(clock.Fake(t0), testPolicy)
	b := newBackend()
	release := b.hold()
	key := querycache.NewKey("expenses")

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := c.Read(ctx, key, b.fetcher(key), querycache.Options{})
		errs <- err
	}()
	<-b.entered
	cancel()
	require.ErrorIs(t, <-errs, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		_, fresh, ok := c.Peek(key)
		return ok && fresh
	}, time.Second, time.Millisecond)
}

func TestCache_Clear(t *testing.T) {
	c := querycache.New(clock.Fake(t0), testPolicy)
	b := newBackend()
	key := querycache.NewKey("customers")
	read(t, c, b, key)

	release := b.hold()
	inflight := querycache.NewKey("bookings")
	done := make(chan struct{})
	go func() {
		defer close(done)
		read(t, c, b, inflight)
	}()
	<-b.entered
	<-b.entered

	c.Clear()
	close(release)
	<-done

	require.Zero(t, c.Len())
	_, _, ok := c.Peek(inflight)
	require.False(t, ok, "a fetch started before Clear is not stored")
}

func TestCache_FetcherPanic(t *testing.T) {
	c := querycache.New(clock.Fake(t0), testPolicy)
	key := querycache.NewKey("reports", "summary")
	_, err := c.Read(context.Background(), key, func(ctx context.Context) (any, error) {
		panic("boom")
	}, querycache.Options{})
	require.ErrorContains(t, err, "fetcher panicked: boom")
}

func TestGet(t *testing.T) {
	c := querycache.New(clock.Fake(t0), testPolicy)
	key := querycache.NewKey("customer", "7")

	got, err := querycache.Get(context.Background(), c, key, func(ctx context.Context) (map[string]string, error) {
		return map[string]string{"id": "7"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "7", got["id"])

	_, err = querycache.Get(context.Background(), c, key, func(ctx context.Context) (int, error) {
		return 0, nil
	})
	require.ErrorContains(t, err, "not int")
}

func nextUpdate(t *testing.T, sub *querycache.Subscription) querycache.Update {
	t.Helper()
	select {
	case u, ok := <-sub.Updates():
		require.True(t, ok)
		return u
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no update received")
	}
	return querycache.Update{}
}
