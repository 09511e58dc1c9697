// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEach(t *testing.T) {
	for _, parallelism := range []int{0, 1, 3, -1} {
		pool := New(parallelism)
		results := make([]int, 20)
		pool.ForEach(len(results), func(ii int) { results[ii] = ii * ii })
		for ii, got := range results {
			require.Equalf(t, ii*ii, got, "parallelism=%d, task #%d", parallelism, ii)
		}
	}
}

func TestForEachLimit(t *testing.T) {
	const limit = 2
	pool := New(limit)
	var running, peak atomic.Int32
	pool.ForEach(10, func(int) {
		current := running.Add(1)
		for {
			old := peak.Load()
			if current <= old || peak.CompareAndSwap(old, current) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
	})
	assert.LessOrEqual(t, int(peak.Load()), limit)
	assert.GreaterOrEqual(t, int(peak.Load()), 1)
}

func TestWaitToStart(t *testing.T) {
	pool := New(1)
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	var secondStarted atomic.Bool
	pool.WaitToStart(func() {
		defer wg.Done()
		<-release
	})
	go pool.WaitToStart(func() {
		defer wg.Done()
		secondStarted.Store(true)
	})
	// The only worker is busy.
	time.Sleep(10 * time.Millisecond)
	assert.False(t, secondStarted.Load())

	close(release)
	wg.Wait()
	assert.True(t, secondStarted.Load())

	// Parallelism 0 runs inline.
	var ran bool
	New(0).WaitToStart(func() { ran = true })
	assert.True(t, ran)
}

func TestParallelism(t *testing.T) {
	assert.False(t, New(0).IsEnabled())
	assert.True(t, New(2).IsEnabled())
	assert.True(t, New(-1).IsUnlimited())
	assert.False(t, New(3).IsUnlimited())
	assert.Equal(t, 3, New(3).MaxParallelism())

	pool := NewDefault()
	pool.SetMaxParallelism(0)
	assert.Equal(t, 0, pool.MaxParallelism())
}
