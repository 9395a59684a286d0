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

package fm

import (
	"github.com/gorse-io/lab/base"
	"github.com/gorse-io/lab/common/floats"
)

// FactorizationMachine scores a sample given by one key per feature dimension. Each
// key is a one-hot feature, so the prediction is
//
//	\hat y(x) = w_0 + \sum_i w_i + \sum_i \sum_{j>i} <v_i, v_j>
//
// over the active features i, j of the sample.
type FactorizationMachine struct {
	offsets    []int       // offset of each dimension in the feature space
	GlobalBias float32     // w_0
	Bias       []float32   // w_i
	Factors    [][]float32 // v_i
	nFactors   int
}

// NewFactorizationMachine creates a factorization machine for the dimension sizes,
// with factors drawn from N(initMean, initStdDev).
func NewFactorizationMachine(sizes []int, nFactors int, initMean, initStdDev float32, rng base.RandomGenerator) *FactorizationMachine {
	offsets := make([]int, len(sizes)+1)
	for d, size := range sizes {
		offsets[d+1] = offsets[d] + size
	}
	nFeatures := offsets[len(sizes)]
	return &FactorizationMachine{
		offsets:  offsets,
		Bias:     make([]float32, nFeatures),
		Factors:  rng.NormalMatrix(nFeatures, nFactors, initMean, initStdDev),
		nFactors: nFactors,
	}
}

// CountFeatures returns the size of the feature space.
func (fm *FactorizationMachine) CountFeatures() int {
	return len(fm.Bias)
}

func (fm *FactorizationMachine) CountFactors() int {
	return fm.nFactors
}

// Feature returns the global feature index of a key in a dimension, or -1 if the key
// is unknown to the model.
func (fm *FactorizationMachine) Feature(dimension int, key int32) int {
	if dimension < 0 || dimension+1 >= len(fm.offsets) {
		return -1
	}
	feature := fm.offsets[dimension] + int(key)
	if key < 0 || feature >= fm.offsets[dimension+1] {
		return -1
	}
	return feature
}

// Predict scores a sample. Unknown keys contribute nothing. The keys are not retained.
func (fm *FactorizationMachine) Predict(keys []int32) float32 {
	predict := fm.GlobalBias
	for i := range keys {
		fi := fm.Feature(i, keys[i])
		if fi < 0 {
			continue
		}
		predict += fm.Bias[fi]
		for j := i + 1; j < len(keys); j++ {
			if fj := fm.Feature(j, keys[j]); fj >= 0 {
				predict += floats.Dot(fm.Factors[fi], fm.Factors[fj])
			}
		}
	}
	return predict
}

// Update applies one pairwise gradient ascent step. grad is the derivative of the
// objective with respect to the margin \hat y(positive) - \hat y(negative). Updates are computed
// from the parameters before the step and then committed together, so features shared
// by both samples receive the sum of both updates.
func (fm *FactorizationMachine) Update(positive, negative []int32, grad, lr, reg float32) {
	biasCache := newBiasUpdateCache()
	factorCache := newFactorUpdateCache(fm.nFactors)
	fm.accumulate(positive, grad, lr, reg, biasCache, factorCache)
	fm.accumulate(negative, -grad, lr, reg, biasCache, factorCache)
	biasCache.commit(fm.Bias)
	factorCache.commit(fm.Factors)
}

func (fm *FactorizationMachine) accumulate(keys []int32, grad, lr, reg float32, biasCache *biasUpdateCache, factorCache *factorUpdateCache) {
	features := make([]int, 0, len(keys))
	for d, key := range keys {
		if feature := fm.Feature(d, key); feature >= 0 {
			features = append(features, feature)
		}
	}
	// \frac {\partial\hat{y}(x)} {\partial w_i} = x_i
	for _, feature := range features {
		biasCache.add(feature, lr*(grad-reg*fm.Bias[feature]))
	}
	// \frac {\partial\hat{y}(x)} {\partial v_{i,f}} = x_i \sum_j v_{j,f} x_j - v_{i,f} x^2_i
	sum := make([]float32, fm.nFactors)
	for _, feature := range features {
		floats.Add(sum, fm.Factors[feature])
	}
	gradFactor := make([]float32, fm.nFactors)
	for _, feature := range features {
		floats.MulConstTo(sum, grad, gradFactor)
		floats.MulConstAdd(fm.Factors[feature], -grad-reg, gradFactor)
		floats.MulConst(gradFactor, lr)
		factorCache.add(feature, gradFactor)
	}
}

type biasUpdateCache struct {
	cache map[int]float32
}

func newBiasUpdateCache() *biasUpdateCache {
	return &biasUpdateCache{cache: make(map[int]float32)}
}

func (cache *biasUpdateCache) add(index int, update float32) {
	cache.cache[index] += update
}

func (cache *biasUpdateCache) commit(bias []float32) {
	for index, update := range cache.cache {
		bias[index] += update
	}
}

type factorUpdateCache struct {
	nFactors int
	cache    map[int][]float32
}

func newFactorUpdateCache(nFactors int) *factorUpdateCache {
	return &factorUpdateCache{nFactors: nFactors, cache: make(map[int][]float32)}
}

func (cache *factorUpdateCache) add(index int, update []float32) {
	if _, exist := cache.cache[index]; !exist {
		cache.cache[index] = make([]float32, cache.nFactors)
	}
	floats.Add(cache.cache[index], update)
}

func (cache *factorUpdateCache) commit(factors [][]float32) {
	for index, update := range cache.cache {
		floats.Add(factors[index], update)
	}
}
