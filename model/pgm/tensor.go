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

// Tensor is a dense three-dimensional array stored in one flat slice. Element
// (i, j, k) lives at offset (i*dim1+j)*dim2+k, so the last axis of a fixed (i, j) is
// contiguous.
type Tensor[T ~int32 | ~float32] struct {
	dims [3]int
	data []T
}

func NewTensor[T ~int32 | ~float32](dim0, dim1, dim2 int) *Tensor[T] {
	return &Tensor[T]{
		dims: [3]int{dim0, dim1, dim2},
		data: make([]T, dim0*dim1*dim2),
	}
}

// Dims returns the size of each axis.
func (t *Tensor[T]) Dims() (int, int, int) {
	return t.dims[0], t.dims[1], t.dims[2]
}

func (t *Tensor[T]) offset(i, j, k int) int {
	if i < 0 || i >= t.dims[0] || j < 0 || j >= t.dims[1] || k < 0 || k >= t.dims[2] {
		panic("pgm: tensor index out of range")
	}
	return (i*t.dims[1]+j)*t.dims[2] + k
}

func (t *Tensor[T]) Get(i, j, k int) T {
	return t.data[t.offset(i, j, k)]
}

func (t *Tensor[T]) Set(i, j, k int, v T) {
	t.data[t.offset(i, j, k)] = v
}

// Add delta to element (i, j, k).
func (t *Tensor[T]) Add(i, j, k int, delta T) {
	t.data[t.offset(i, j, k)] += delta
}

// Fiber returns the last axis at (i, j). The slice aliases the tensor.
func (t *Tensor[T]) Fiber(i, j int) []T {
	begin := t.offset(i, j, 0)
	return t.data[begin : begin+t.dims[2]]
}

// Fill sets every element to v.
func (t *Tensor[T]) Fill(v T) {
	for i := range t.data {
		t.data[i] = v
	}
}
