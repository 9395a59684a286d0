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
	"math"
	"sort"

	"github.com/gorse-io/lab/base"
)

// BinarySearch returns the smallest index k in [lo, hi] such that c[k] >= u, where c is
// non-decreasing. It returns -1 if u > c[hi]. A zero-weight entry after lo shares the
// cumulative value of its predecessor, so it is never returned.
func BinarySearch(c []float32, lo, hi int, u float32) int {
	if u > c[hi] {
		return -1
	}
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if c[mid] >= u {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// Cumulative is a prefix-sum of non-negative weights. Entry k holds the total weight of
// indices [0, k].
type Cumulative []float32

// NewCumulative builds a cumulative distribution from weights. Sums are accumulated in
// float64.
func NewCumulative(weights []float32) Cumulative {
	c := make(Cumulative, len(weights))
	var sum float64
	for i, weight := range weights {
		sum += float64(weight)
		c[i] = float32(sum)
	}
	return c
}

// Total returns the sum of all weights.
func (c Cumulative) Total() float32 {
	if len(c) == 0 {
		return 0
	}
	return c[len(c)-1]
}

// Weight returns the weight of index k. It is zero for an index whose weight vanished
// when the running sum was rounded to float32, and such an index is never sampled.
func (c Cumulative) Weight(k int) float32 {
	if k == 0 {
		return c[0]
	}
	return c[k] - c[k-1]
}

// Sample draws u uniformly from [0, c[hi]) and returns BinarySearch(c, lo, hi, u). The
// result may be lo even when u falls below c[lo]; callers reject draws they cannot use.
func (c Cumulative) Sample(rng base.RandomGenerator, lo, hi int) int {
	return BinarySearch(c, lo, hi, rng.Float32n(c[hi]))
}

// RankByPopularity orders items by descending popularity. Items with equal popularity
// keep ascending index order.
func RankByPopularity(popularity []int) []int {
	order := make([]int, len(popularity))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return popularity[order[i]] > popularity[order[j]]
	})
	return order
}

// NewPopularityDistribution builds the item sampling distribution used for negative
// sampling. The item at rank r (0-based, most popular first) weighs exp(-(r+1)/(n*rho)),
// where n is the number of items. The result is indexed by item.
func NewPopularityDistribution(popularity []int, rho float32) Cumulative {
	n := float64(len(popularity))
	weights := make([]float64, len(popularity))
	for rank, item := range RankByPopularity(popularity) {
		weights[item] = math.Exp(-float64(rank+1) / (n * float64(rho)))
	}
	c := make(Cumulative, len(weights))
	var sum float64
	for item, weight := range weights {
		sum += weight
		c[item] = float32(sum)
	}
	return c
}
