package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authbridge/cache"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestGetMiss(t *testing.T) {
	c := New()
	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestExpiredKeyIsAMiss(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestValueIsCopied(t *testing.T) {
	c := New()
	ctx := context.Background()

	src := []byte("v")
	require.NoError(t, c.Set(ctx, "k", src, time.Minute))
	src[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	got[0] = 'y'
	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), again)
}

func TestGetDelConsumes(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.GetDel(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	_, err = c.GetDel(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestGetDelConcurrentSingleWinner(t *testing.T) {
	c := New()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetDel(ctx, "k"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1)
}

func TestDeleteReportsExistence(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	existed, err := c.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = c.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestSetIfAbsent(t *testing.T) {
	c := New()
	ctx := context.Background()

	ok, err := c.SetIfAbsent(ctx, "k", []byte("first"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetIfAbsent(ctx, "k", []byte("second"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIncrementCounts(t *testing.T) {
	c := New()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := c.Increment(ctx, "ctr", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
}

func TestIncrementStoresDecimalText(t *testing.T) {
	c := New()
	ctx := context.Background()

	_, err := c.Increment(ctx, "ctr", time.Minute)
	require.NoError(t, err)
	_, err = c.Increment(ctx, "ctr", time.Minute)
	require.NoError(t, err)

	got, err := c.Get(ctx, "ctr")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
}

func TestIncrementConcurrent(t *testing.T) {
	c := New()
	ctx := context.Background()

	const racers = 32
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Increment(ctx, "ctr", time.Minute)
		}()
	}
	wg.Wait()

	n, err := c.Increment(ctx, "ctr", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(racers+1), n)
}
