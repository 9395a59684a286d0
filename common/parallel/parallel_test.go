// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package parallel

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestParallel(t *testing.T) {
	a := make([]int, 10000)
	b := make([]int, len(a))
	for i := range a {
		a[i] = i
	}
	// multiple workers
	err := Parallel(context.Background(), len(a), 4, func(_, jobId int) error {
		b[jobId] = a[jobId] * 2
		return nil
	})
	assert.NoError(t, err)
	for i := range a {
		assert.Equal(t, 2*i, b[i])
	}
	// single worker
	err = Parallel(context.Background(), len(a), 1, func(workerId, jobId int) error {
		assert.Zero(t, workerId)
		b[jobId] = a[jobId]
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParallelError(t *testing.T) {
	err := Parallel(context.Background(), 100, 4, func(_, jobId int) error {
		if jobId == 50 {
			return errors.New("boom")
		}
		return nil
	})
	assert.Error(t, err)
	err = Parallel(context.Background(), 100, 1, func(_, jobId int) error {
		if jobId == 50 {
			return errors.New("boom")
		}
		return nil
	})
	assert.Error(t, err)
}

func TestParallelAllWorkersFail(t *testing.T) {
	before := runtime.NumGoroutine()
	err := Parallel(context.Background(), 10*chanSize, 4, func(_, _ int) error {
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	// the producer exits although most jobs were never consumed
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, time.Second, 10*time.Millisecond)
}

func TestParallelCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Parallel(ctx, 100, 1, func(_, _ int) error { return nil }), context.Canceled)
	assert.ErrorIs(t, Parallel(ctx, 100, 4, func(_, _ int) error { return nil }), context.Canceled)
}
