package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitReturnsOnlyAtRequired(t *testing.T) {
	acc := New()

	for i := 0; i < 3; i++ {
		go func(i int) {
			time.Sleep(time.Duration(i+1) * 10 * time.Millisecond)
			acc.Append(fmt.Sprintf("fragment-%d", i))
			acc.Done()
		}(i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	buffer, completed, err := acc.Wait(ctx, 3)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, completed, 3, "gate must never open below required")
	assert.Contains(t, buffer, "fragment-0")
	assert.Contains(t, buffer, "fragment-1")
	assert.Contains(t, buffer, "fragment-2")
}

func TestConcurrentDoneNoLostUpdates(t *testing.T) {
	const k = 64
	acc := New()

	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc.Done()
		}()
	}
	wg.Wait()

	assert.Equal(t, k, acc.Completed())
}

func TestConcurrentAppendKeepsAllFragments(t *testing.T) {
	const k = 32
	acc := New()

	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc.Append(fmt.Sprintf("f%d", i))
		}(i)
	}
	wg.Wait()

	assert.Len(t, acc.Fragments(), k)
}

func TestWaitTimeoutWhenHandlersNeverComplete(t *testing.T) {
	acc := New()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, completed, err := acc.Wait(ctx, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateTimeout)
	assert.Equal(t, 0, completed)
	assert.Less(t, time.Since(start), 2*time.Second, "timeout must fire at the configured bound")
}

func TestWaitFailsFastWhenRequiredUnreachable(t *testing.T) {
	acc := New()
	acc.Expect(3)
	acc.Done()
	acc.Fail(errors.New("lookup exploded"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	_, completed, err := acc.Wait(ctx, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateFailed)
	assert.NotErrorIs(t, err, ErrGateTimeout, "unreachable gate must be distinguishable from timeout")
	assert.Equal(t, 1, completed)
	assert.Less(t, time.Since(start), time.Second, "gate failure must not wait out the timeout")
	assert.Contains(t, err.Error(), "lookup exploded")
}

func TestWaitToleratesFailuresWithinSlack(t *testing.T) {
	acc := New()
	acc.Expect(5)
	acc.Fail(errors.New("one straggler"))
	for i := 0; i < 3; i++ {
		acc.Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, completed, err := acc.Wait(ctx, 3)
	require.NoError(t, err, "3 of 5 completions reached with one failure still satisfies required=3")
	assert.Equal(t, 3, completed)
}

func TestWaitZeroRequiredReturnsImmediately(t *testing.T) {
	acc := New()
	acc.Append("x")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	buffer, _, err := acc.Wait(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "x", buffer)
}
