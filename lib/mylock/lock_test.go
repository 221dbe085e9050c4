package mylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLocker(t *testing.T) {
	c := context.Background()

	t.Run("serialises same key", func(t *testing.T) {
		locker := NewInMemoryLocker()
		counter := 0
		wg := sync.WaitGroup{}
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := WithLock(c, locker, "basket-session:abc", func(c context.Context) error {
					v := counter
					time.Sleep(time.Microsecond)
					counter = v + 1
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, counter)
		assert.Equal(t, 0, locker.size())
	})

	t.Run("different keys do not block", func(t *testing.T) {
		locker := NewInMemoryLocker()
		release, err := locker.Lock(c, "a")
		require.NoError(t, err)
		defer release()

		releaseB, err := locker.Lock(c, "b")
		require.NoError(t, err)
		releaseB()
	})

	t.Run("cancelled context gives up", func(t *testing.T) {
		locker := NewInMemoryLocker()
		release, err := locker.Lock(c, "a")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(c, 10*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(ctx, "a")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		release()
		release() // second release is a no-op
		assert.Equal(t, 0, locker.size())
	})
}

type fakeRedis struct {
	sync.Mutex
	values   map[string]string
	releases int
}

func (f *fakeRedis) SetNX(c context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.Lock()
	defer f.Unlock()
	if _, exists := f.values[key]; exists {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedis) CompareAndDelete(c context.Context, key string, value string) (bool, error) {
	f.Lock()
	defer f.Unlock()
	f.releases++
	if f.values[key] != value {
		return false, nil
	}
	delete(f.values, key)
	return true, nil
}

func TestRedisLocker(t *testing.T) {
	c := context.Background()
	store := &fakeRedis{values: map[string]string{}}
	locker, err := NewRedisLocker(store, 50*time.Millisecond)
	require.NoError(t, err)

	t.Run("acquire and release", func(t *testing.T) {
		release, err := locker.Lock(c, "basket-session:1")
		require.NoError(t, err)
		assert.Len(t, store.values, 1)

		release()
		assert.Len(t, store.values, 0)
	})

	t.Run("held lock times out", func(t *testing.T) {
		release, err := locker.Lock(c, "basket-session:2")
		require.NoError(t, err)
		defer release()

		_, err = locker.Lock(c, "basket-session:2")
		assert.ErrorIs(t, err, ErrNotAcquired)
	})

	t.Run("does not release a lock owned by another", func(t *testing.T) {
		release, err := locker.Lock(c, "basket-session:3")
		require.NoError(t, err)

		// lock expired and was taken by another replica
		store.values["basket-session:3"] = "someone-else"
		release()
		assert.Equal(t, "someone-else", store.values["basket-session:3"])
	})

	t.Run("release is a single compare and delete", func(t *testing.T) {
		before := store.releases
		release, err := locker.Lock(c, "basket-session:4")
		require.NoError(t, err)

		release()
		assert.Equal(t, before+1, store.releases)
		_, held := store.values["basket-session:4"]
		assert.False(t, held)
	})

	t.Run("client required", func(t *testing.T) {
		_, err := NewRedisLocker(nil, time.Second)
		assert.Error(t, err)
	})
}
