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

package dataset

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatrix(t *testing.T) *Matrix {
	b := NewMatrixBuilder(3, 4)
	require.NoError(t, b.Add(0, 2, 1))
	require.NoError(t, b.Add(0, 0, 2))
	require.NoError(t, b.Add(1, 3, 3))
	require.NoError(t, b.Add(1, 0, 4))
	require.NoError(t, b.Add(1, 1, 5))
	return b.Build()
}

func TestMatrixBuilder(t *testing.T) {
	b := NewMatrixBuilder(2, 2)
	assert.NoError(t, b.Add(0, 1, 1))
	assert.True(t, errors.Is(b.Add(0, 1, 2), errors.AlreadyExists))
	assert.True(t, errors.Is(b.Add(2, 0, 1), errors.NotValid))
	assert.True(t, errors.Is(b.Add(0, -1, 1), errors.NotValid))
	assert.True(t, errors.Is(b.Add(0, 2, 1), errors.NotValid))
	m := b.Build()
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, 2, m.CountUsers())
	assert.Equal(t, 2, m.CountItems())
}

func TestMatrix_Row(t *testing.T) {
	m := newTestMatrix(t)
	assert.Equal(t, 5, m.Count())
	items, values := m.Row(0)
	assert.Equal(t, []int32{0, 2}, items)
	assert.Equal(t, []float32{2, 1}, values)
	items, values = m.Row(1)
	assert.Equal(t, []int32{0, 1, 3}, items)
	assert.Equal(t, []float32{4, 5, 3}, values)
	items, _ = m.Row(2)
	assert.Empty(t, items)
	assert.Equal(t, 0, m.RowSize(2))
	from, to := m.RowRange(1)
	assert.Equal(t, 2, from)
	assert.Equal(t, 5, to)
}

func TestMatrix_ColumnSize(t *testing.T) {
	m := newTestMatrix(t)
	assert.Equal(t, 2, m.ColumnSize(0))
	assert.Equal(t, 1, m.ColumnSize(1))
	assert.Equal(t, 1, m.ColumnSize(2))
	assert.Equal(t, 1, m.ColumnSize(3))
}

func TestMatrix_Get(t *testing.T) {
	m := newTestMatrix(t)
	v, ok := m.Get(1, 3)
	assert.True(t, ok)
	assert.Equal(t, float32(3), v)
	_, ok = m.Get(1, 2)
	assert.False(t, ok)
	assert.True(t, m.Contains(0, 2))
	assert.False(t, m.Contains(2, 0))
}

func TestMatrix_ForEach(t *testing.T) {
	m := newTestMatrix(t)
	count := 0
	m.ForEach(func(pos int, userIndex, itemIndex int32, value float32) {
		assert.Equal(t, count, pos)
		u, i, v := m.At(pos)
		assert.Equal(t, u, userIndex)
		assert.Equal(t, i, itemIndex)
		assert.Equal(t, v, value)
		count++
	})
	assert.Equal(t, m.Count(), count)
}

func TestMatrix_Reweight(t *testing.T) {
	m := newTestMatrix(t)
	w := m.Reweight(func(userIndex, itemIndex int32, value float32) float32 {
		return float32(itemIndex) * 10
	})
	_, values := w.Row(1)
	assert.Equal(t, []float32{0, 10, 30}, values)
	_, values = m.Row(1)
	assert.Equal(t, []float32{4, 5, 3}, values)
	assert.Equal(t, m.ColumnSize(0), w.ColumnSize(0))
}
