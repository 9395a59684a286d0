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
	"testing"

	"github.com/gorse-io/lab/base"
	"github.com/stretchr/testify/assert"
)

func TestFactorizationMachine_Feature(t *testing.T) {
	fm := NewFactorizationMachine([]int{3, 4, 2}, 5, 0, 0.01, base.NewRandomGenerator(0))
	assert.Equal(t, 9, fm.CountFeatures())
	assert.Equal(t, 5, fm.CountFactors())
	assert.Equal(t, 0, fm.Feature(0, 0))
	assert.Equal(t, 5, fm.Feature(1, 2))
	assert.Equal(t, 8, fm.Feature(2, 1))
	assert.Equal(t, -1, fm.Feature(1, 4))
	assert.Equal(t, -1, fm.Feature(1, -1))
	assert.Equal(t, -1, fm.Feature(3, 0))
}

func TestFactorizationMachine_Predict(t *testing.T) {
	fm := NewFactorizationMachine([]int{2, 2, 1}, 2, 0, 0, base.NewRandomGenerator(0))
	fm.GlobalBias = 0.5
	fm.Bias = []float32{1, 2, 3, 4, 5}
	fm.Factors = [][]float32{{1, 0}, {0, 1}, {1, 1}, {2, 0}, {0, 3}}
	// w0 + w1 + w2 + w4 + <v1,v2> + <v1,v4> + <v2,v4>
	assert.Equal(t, float32(0.5+2+3+5+1+3+3), fm.Predict([]int32{1, 0, 0}))
	// unknown context key is ignored
	assert.Equal(t, float32(0.5+1+4+2), fm.Predict([]int32{0, 1, 7}))
	// keys are not modified
	keys := []int32{0, 1, 0}
	fm.Predict(keys)
	assert.Equal(t, []int32{0, 1, 0}, keys)
}

func TestFactorizationMachine_Update(t *testing.T) {
	rng := base.NewRandomGenerator(0)
	fm := NewFactorizationMachine([]int{3, 5}, 4, 0, 0.1, rng)
	positive := []int32{1, 2}
	negative := []int32{1, 4}
	margin := fm.Predict(positive) - fm.Predict(negative)
	for i := 0; i < 100; i++ {
		fm.Update(positive, negative, 1, 0.05, 0)
	}
	assert.Greater(t, fm.Predict(positive)-fm.Predict(negative), margin+1)
	// untouched features keep their parameters
	assert.Zero(t, fm.Bias[fm.Feature(1, 0)])
	assert.Zero(t, fm.Bias[fm.Feature(0, 0)])
}

func TestFactorizationMachine_UpdateSharedFeature(t *testing.T) {
	fm := NewFactorizationMachine([]int{1, 2}, 2, 0, 0, base.NewRandomGenerator(0))
	fm.Bias = []float32{1, 0, 0}
	fm.Update([]int32{0, 0}, []int32{0, 1}, 1, 0.1, 0.5)
	// user bias receives +grad and -grad, plus regularization twice
	assert.InDelta(t, 1-2*0.1*0.5, fm.Bias[0], 1e-6)
	assert.InDelta(t, 0.1, fm.Bias[1], 1e-6)
	assert.InDelta(t, -0.1, fm.Bias[2], 1e-6)
}
