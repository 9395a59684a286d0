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

package sampling

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/gorse-io/lab/base"
	"github.com/stretchr/testify/assert"
)

func TestBinarySearch(t *testing.T) {
	c := []float32{1, 3, 3, 6, 10}
	assert.Equal(t, 0, BinarySearch(c, 0, 4, 0))
	assert.Equal(t, 0, BinarySearch(c, 0, 4, 1))
	assert.Equal(t, 1, BinarySearch(c, 0, 4, 1.5))
	assert.Equal(t, 1, BinarySearch(c, 0, 4, 3))
	assert.Equal(t, 3, BinarySearch(c, 0, 4, 3.5))
	assert.Equal(t, 4, BinarySearch(c, 0, 4, 10))
	assert.Equal(t, -1, BinarySearch(c, 0, 4, 10.5))
	// sub-range
	assert.Equal(t, 2, BinarySearch(c, 2, 4, 0.5))
	assert.Equal(t, 3, BinarySearch(c, 2, 3, 5))
	assert.Equal(t, -1, BinarySearch(c, 0, 2, 4))
	assert.Equal(t, 2, BinarySearch(c, 2, 2, 3))
}

func TestBinarySearchBounds(t *testing.T) {
	rng := base.NewRandomGenerator(0)
	weights := make([]float32, 100)
	for i := range weights {
		if rng.Intn(4) > 0 {
			weights[i] = rng.Float32()
		}
	}
	c := NewCumulative(weights)
	for i := 0; i < 1000; i++ {
		lo := rng.Intn(len(c))
		hi := lo + rng.Intn(len(c)-lo)
		u := rng.Float32n(c.Total() * 1.1)
		k := BinarySearch(c, lo, hi, u)
		if u > c[hi] {
			assert.Equal(t, -1, k)
			continue
		}
		assert.GreaterOrEqual(t, k, lo)
		assert.LessOrEqual(t, k, hi)
		assert.GreaterOrEqual(t, c[k], u)
		if k > lo {
			assert.Less(t, c[k-1], u)
			assert.Greater(t, c.Weight(k), float32(0))
		}
	}
}

func TestCumulative(t *testing.T) {
	weights := []float32{1, 0, 2, 3}
	c := NewCumulative(weights)
	assert.Equal(t, Cumulative{1, 1, 3, 6}, c)
	assert.Equal(t, []float32{1, 0, 2, 3}, weights)
	assert.Equal(t, float32(6), c.Total())
	assert.Equal(t, float32(0), c.Weight(1))
	assert.Equal(t, float32(3), c.Weight(3))
	assert.Zero(t, Cumulative{}.Total())
}

func TestCumulative_Sample(t *testing.T) {
	rng := base.NewRandomGenerator(0)
	c := NewCumulative([]float32{1, 0, 2, 3})
	counts := make([]int, len(c))
	const n = 60000
	for i := 0; i < n; i++ {
		counts[c.Sample(rng, 0, 3)]++
	}
	assert.Zero(t, counts[1])
	assert.InDelta(t, 1.0/6, float64(counts[0])/n, 0.01)
	assert.InDelta(t, 2.0/6, float64(counts[2])/n, 0.01)
	assert.InDelta(t, 3.0/6, float64(counts[3])/n, 0.01)
	for i := 0; i < 100; i++ {
		k := c.Sample(rng, 2, 3)
		assert.Contains(t, []int{2, 3}, k)
	}
}

func TestRankByPopularity(t *testing.T) {
	assert.Equal(t, []int{2, 0, 3, 1, 4}, RankByPopularity([]int{3, 1, 5, 3, 0}))
	assert.Equal(t, []int{0, 1, 2}, RankByPopularity([]int{2, 2, 2}))
}

func TestNewPopularityDistribution(t *testing.T) {
	popularity := []int{3, 1, 5, 3, 0}
	c := NewPopularityDistribution(popularity, 0.5)
	assert.Len(t, c, 5)
	for k := 1; k < len(c); k++ {
		assert.Greater(t, c[k], c[k-1])
	}
	// more popular items weigh more
	for i := range popularity {
		for j := range popularity {
			if popularity[i] > popularity[j] {
				assert.Greater(t, c.Weight(i), c.Weight(j))
			}
		}
	}
	var total float32
	for rank := 1; rank <= 5; rank++ {
		total += math32.Exp(-float32(rank) / (5 * 0.5))
	}
	assert.InDelta(t, total, c.Total(), 1e-5)
	assert.InDelta(t, math32.Exp(-1/2.5), c.Weight(2), 1e-6)
}

func TestPopularityScenario(t *testing.T) {
	// 3 users, 4 items: (0,0), (0,1), (1,2), (2,3) all have degree 1.
	popularity := []int{1, 1, 1, 1}
	assert.Equal(t, []int{0, 1, 2, 3}, RankByPopularity(popularity))
	c := NewPopularityDistribution(popularity, 1)
	assert.Len(t, c, 4)
	for k := 1; k < len(c); k++ {
		assert.Greater(t, c[k], c[k-1])
	}
	assert.Greater(t, c.Weight(0), c.Weight(1))
	assert.Greater(t, c.Weight(1), c.Weight(2))
	assert.InDelta(t, math32.Exp(-0.25), c.Weight(0), 1e-6)
}

func TestBinarySearchSupremum(t *testing.T) {
	c := NewCumulative([]float32{0.5, 1, 2, 0.25, 4})
	for lo := 0; lo < len(c); lo++ {
		for hi := lo; hi < len(c); hi++ {
			assert.Equal(t, hi, BinarySearch(c, lo, hi, c[hi]))
			var below float32
			if lo > 0 {
				below = c[lo-1]
			}
			assert.Equal(t, lo, BinarySearch(c, lo, hi, below+1e-3))
		}
	}
}

func TestNewCumulativeSmallWeights(t *testing.T) {
	// each weight is below half an ulp of 1 but their sum is not
	weights := make([]float32, 101)
	weights[0] = 1
	for i := 1; i < len(weights); i++ {
		weights[i] = 1e-8
	}
	c := NewCumulative(weights)
	assert.Greater(t, c.Total(), float32(1))
	assert.InDelta(t, 1+1e-6, c.Total(), 1e-7)
}
