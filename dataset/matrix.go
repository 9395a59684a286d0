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
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
)

// Matrix is an immutable sparse user-item interaction matrix in compressed row layout.
// Items of a row are sorted by index. The position of an entry in the layout is a compact
// observation id in [0, Count()), stable for the lifetime of the matrix.
type Matrix struct {
	rowPtr     []int32 // rowPtr[u]..rowPtr[u+1] are the positions of user u
	rows       []int32 // user of each position
	columns    []int32 // item of each position
	values     []float32
	columnSize []int32
}

func (m *Matrix) CountUsers() int {
	return len(m.rowPtr) - 1
}

func (m *Matrix) CountItems() int {
	return len(m.columnSize)
}

// Count returns the number of stored entries.
func (m *Matrix) Count() int {
	return len(m.columns)
}

// RowRange returns the half-open position range [from, to) of a user.
func (m *Matrix) RowRange(userIndex int32) (from, to int) {
	return int(m.rowPtr[userIndex]), int(m.rowPtr[userIndex+1])
}

// Row returns the items and values of a user, ordered by item index. The returned
// slices alias the matrix and must not be modified.
func (m *Matrix) Row(userIndex int32) ([]int32, []float32) {
	from, to := m.RowRange(userIndex)
	return m.columns[from:to], m.values[from:to]
}

func (m *Matrix) RowSize(userIndex int32) int {
	return int(m.rowPtr[userIndex+1] - m.rowPtr[userIndex])
}

// ColumnSize returns the number of users who interacted with an item (its popularity).
func (m *Matrix) ColumnSize(itemIndex int32) int {
	return int(m.columnSize[itemIndex])
}

// Get returns the value of (user, item) if present.
func (m *Matrix) Get(userIndex, itemIndex int32) (float32, bool) {
	items, values := m.Row(userIndex)
	i := sort.Search(len(items), func(i int) bool { return items[i] >= itemIndex })
	if i < len(items) && items[i] == itemIndex {
		return values[i], true
	}
	return 0, false
}

func (m *Matrix) Contains(userIndex, itemIndex int32) bool {
	_, ok := m.Get(userIndex, itemIndex)
	return ok
}

// At returns the entry stored at a position.
func (m *Matrix) At(pos int) (userIndex, itemIndex int32, value float32) {
	return m.rows[pos], m.columns[pos], m.values[pos]
}

// ForEach iterates entries in position order.
func (m *Matrix) ForEach(f func(pos int, userIndex, itemIndex int32, value float32)) {
	for pos := range m.columns {
		f(pos, m.rows[pos], m.columns[pos], m.values[pos])
	}
}

// Reweight returns a matrix with the same structure and values replaced by f. The
// receiver is left untouched.
func (m *Matrix) Reweight(f func(userIndex, itemIndex int32, value float32) float32) *Matrix {
	values := make([]float32, len(m.values))
	for pos := range m.values {
		values[pos] = f(m.rows[pos], m.columns[pos], m.values[pos])
	}
	return &Matrix{
		rowPtr:     m.rowPtr,
		rows:       m.rows,
		columns:    m.columns,
		values:     values,
		columnSize: m.columnSize,
	}
}

type entry struct {
	item  int32
	value float32
}

// MatrixBuilder collects entries of a Matrix. Each (user, item) pair may be added once.
type MatrixBuilder struct {
	nItems int
	rows   [][]entry
	seen   []mapset.Set[int32]
	count  int
}

func NewMatrixBuilder(nUsers, nItems int) *MatrixBuilder {
	b := &MatrixBuilder{
		nItems: nItems,
		rows:   make([][]entry, nUsers),
		seen:   make([]mapset.Set[int32], nUsers),
	}
	for i := range b.seen {
		b.seen[i] = mapset.NewThreadUnsafeSet[int32]()
	}
	return b
}

func (b *MatrixBuilder) Add(userIndex, itemIndex int32, value float32) error {
	if userIndex < 0 || int(userIndex) >= len(b.rows) {
		return errors.NotValidf("user index %d out of [0, %d)", userIndex, len(b.rows))
	}
	if itemIndex < 0 || int(itemIndex) >= b.nItems {
		return errors.NotValidf("item index %d out of [0, %d)", itemIndex, b.nItems)
	}
	if !b.seen[userIndex].Add(itemIndex) {
		return errors.AlreadyExistsf("interaction (%d, %d)", userIndex, itemIndex)
	}
	b.rows[userIndex] = append(b.rows[userIndex], entry{item: itemIndex, value: value})
	b.count++
	return nil
}

func (b *MatrixBuilder) Build() *Matrix {
	m := &Matrix{
		rowPtr:     make([]int32, len(b.rows)+1),
		rows:       make([]int32, 0, b.count),
		columns:    make([]int32, 0, b.count),
		values:     make([]float32, 0, b.count),
		columnSize: make([]int32, b.nItems),
	}
	for userIndex, row := range b.rows {
		sort.Slice(row, func(i, j int) bool { return row[i].item < row[j].item })
		for _, e := range row {
			m.rows = append(m.rows, int32(userIndex))
			m.columns = append(m.columns, e.item)
			m.values = append(m.values, e.value)
			m.columnSize[e.item]++
		}
		m.rowPtr[userIndex+1] = int32(len(m.columns))
	}
	return m
}
