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

package pgm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTensor(t *testing.T) {
	tensor := NewTensor[int32](2, 3, 4)
	d0, d1, d2 := tensor.Dims()
	assert.Equal(t, []int{2, 3, 4}, []int{d0, d1, d2})
	tensor.Set(1, 2, 3, 5)
	tensor.Add(1, 2, 3, 2)
	tensor.Add(0, 1, 0, -1)
	assert.Equal(t, int32(7), tensor.Get(1, 2, 3))
	assert.Equal(t, int32(-1), tensor.Get(0, 1, 0))
	assert.Equal(t, []int32{0, 0, 0, 7}, tensor.Fiber(1, 2))
	tensor.Fiber(0, 0)[2] = 9
	assert.Equal(t, int32(9), tensor.Get(0, 0, 2))
	assert.Panics(t, func() { tensor.Get(2, 0, 0) })
	assert.Panics(t, func() { tensor.Get(0, 3, 0) })
	assert.Panics(t, func() { tensor.Get(0, 0, -1) })

	probabilities := NewTensor[float32](1, 1, 2)
	probabilities.Fill(0.5)
	assert.Equal(t, []float32{0.5, 0.5}, probabilities.Fiber(0, 0))
}
