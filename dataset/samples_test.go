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

func newTestSamples(t *testing.T) *Samples {
	s := NewSamples([]string{"user", "item", "weekday"}, 0, 1)
	require.NoError(t, s.Add([]string{"u1", "i1", "mon"}, 5))
	require.NoError(t, s.Add([]string{"u2", "i1", "tue"}, 3))
	require.NoError(t, s.Add([]string{"u1", "i2", "tue"}, 1))
	require.NoError(t, s.Add([]string{"u3", "i3", "mon"}, 3))
	return s
}

func TestSamples_Add(t *testing.T) {
	s := newTestSamples(t)
	assert.Equal(t, 4, s.Count())
	assert.Equal(t, 3, s.CountDimensions())
	assert.Equal(t, 3, s.CountUsers())
	assert.Equal(t, 3, s.CountItems())
	assert.Equal(t, []int{3, 3, 2}, s.DimensionSizes())
	assert.Equal(t, []int32{0, 1, 1}, s.Keys(2, nil))
	assert.Equal(t, float32(1), s.Target(2))
	assert.Equal(t, 2, s.Dict(0).Freq(0))
	assert.True(t, errors.Is(s.Add([]string{"u1"}, 1), errors.NotValid))
	assert.True(t, errors.Is(s.AddKeys([]int32{0, -1, 0}, 1), errors.NotValid))
}

func TestSamples_AddKeys(t *testing.T) {
	s := NewSamples([]string{"user", "item"}, 0, 1)
	require.NoError(t, s.AddKeys([]int32{4, 1}, 1))
	assert.Equal(t, 5, s.CountUsers())
	assert.Equal(t, 2, s.CountItems())
	buf := make([]int32, 2)
	keys := s.Keys(0, buf)
	assert.Equal(t, []int32{4, 1}, keys)
	assert.Same(t, &buf[0], &keys[0])
}

func TestSamples_Paginate(t *testing.T) {
	s := newTestSamples(t)
	paginations, positions := s.Paginate()
	assert.Equal(t, []int{0, 2, 3, 4}, paginations)
	assert.Equal(t, []int{0, 2, 1, 3}, positions)
	for u := 0; u < s.CountUsers(); u++ {
		for _, pos := range positions[paginations[u]:paginations[u+1]] {
			assert.Equal(t, int32(u), s.Key(0, pos))
		}
	}
}

func TestSamples_Matrix(t *testing.T) {
	s := newTestSamples(t)
	m, err := s.Matrix()
	require.NoError(t, err)
	assert.Equal(t, 4, m.Count())
	v, ok := m.Get(0, 1)
	assert.True(t, ok)
	assert.Equal(t, float32(1), v)

	require.NoError(t, s.Add([]string{"u1", "i1", "wed"}, 2))
	_, err = s.Matrix()
	assert.True(t, errors.Is(err, errors.AlreadyExists))
}

func TestSamples_Scores(t *testing.T) {
	s := newTestSamples(t)
	assert.Equal(t, []float32{1, 3, 5}, s.Scores())
}

func TestSamples_Split(t *testing.T) {
	s := NewSamples([]string{"user", "item"}, 0, 1)
	for i := int32(0); i < 100; i++ {
		require.NoError(t, s.AddKeys([]int32{i % 10, i / 10}, float32(i)))
	}
	train, test := s.Split(0.2, 0)
	assert.Equal(t, 80, train.Count())
	assert.Equal(t, 20, test.Count())
	assert.Equal(t, 10, train.CountUsers())
	assert.Equal(t, 10, test.CountItems())
	seen := make(map[float32]struct{})
	for _, part := range []*Samples{train, test} {
		for pos := 0; pos < part.Count(); pos++ {
			target := part.Target(pos)
			seen[target] = struct{}{}
			assert.Equal(t, int32(target)%10, part.Key(0, pos))
		}
	}
	assert.Len(t, seen, 100)
}

func TestSamples_Filter(t *testing.T) {
	s := newTestSamples(t)
	filtered := s.Filter(func(pos int) bool { return s.Target(pos) == 3 })
	assert.Equal(t, 2, filtered.Count())
	assert.Equal(t, []int32{1, 0, 1}, filtered.Keys(0, nil))
	assert.Equal(t, []int32{2, 2, 0}, filtered.Keys(1, nil))
	assert.Equal(t, s.DimensionSizes(), filtered.DimensionSizes())
	assert.Same(t, s.Dict(0), filtered.Dict(0))
}
