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

	"github.com/gorse-io/lab/base"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Samples stores observed interactions as vectors of discrete feature keys plus a
// continuous target. One dimension holds the user, another the item and the rest are
// context features.
type Samples struct {
	names         []string
	dicts         []*FreqDict
	sizes         []int
	keys          [][]int32 // keys[dimension][position]
	targets       []float32
	userDimension int
	itemDimension int
}

func NewSamples(names []string, userDimension, itemDimension int) *Samples {
	s := &Samples{
		names:         names,
		dicts:         make([]*FreqDict, len(names)),
		sizes:         make([]int, len(names)),
		keys:          make([][]int32, len(names)),
		userDimension: userDimension,
		itemDimension: itemDimension,
	}
	for i := range s.dicts {
		s.dicts[i] = NewFreqDict()
	}
	return s
}

// Add a sample given by raw ids, which are mapped through the dictionary of each dimension.
func (s *Samples) Add(ids []string, target float32) error {
	if len(ids) != len(s.names) {
		return errors.NotValidf("sample with %d fields, expect %d", len(ids), len(s.names))
	}
	keys := make([]int32, len(ids))
	for d, id := range ids {
		keys[d] = s.dicts[d].Id(id)
	}
	return s.AddKeys(keys, target)
}

// AddKeys adds a sample given by feature indices. Dimension sizes grow to cover the keys.
func (s *Samples) AddKeys(keys []int32, target float32) error {
	if len(keys) != len(s.names) {
		return errors.NotValidf("sample with %d fields, expect %d", len(keys), len(s.names))
	}
	for d, key := range keys {
		if key < 0 {
			return errors.NotValidf("negative key %d in dimension %s", key, s.names[d])
		}
		s.keys[d] = append(s.keys[d], key)
		s.sizes[d] = max(s.sizes[d], int(key)+1)
	}
	s.targets = append(s.targets, target)
	return nil
}

func (s *Samples) Count() int {
	return len(s.targets)
}

func (s *Samples) CountDimensions() int {
	return len(s.names)
}

func (s *Samples) DimensionNames() []string {
	return s.names
}

// DimensionSize returns the number of distinct keys of a dimension.
func (s *Samples) DimensionSize(dimension int) int {
	return max(s.sizes[dimension], s.dicts[dimension].Count())
}

// DimensionSizes returns sizes of all dimensions.
func (s *Samples) DimensionSizes() []int {
	return lo.Times(len(s.names), s.DimensionSize)
}

func (s *Samples) Dict(dimension int) *FreqDict {
	return s.dicts[dimension]
}

func (s *Samples) UserDimension() int {
	return s.userDimension
}

func (s *Samples) ItemDimension() int {
	return s.itemDimension
}

func (s *Samples) CountUsers() int {
	return s.DimensionSize(s.userDimension)
}

func (s *Samples) CountItems() int {
	return s.DimensionSize(s.itemDimension)
}

func (s *Samples) Key(dimension, position int) int32 {
	return s.keys[dimension][position]
}

// Keys copies the feature keys of a sample into dst, allocating if dst is too short.
func (s *Samples) Keys(position int, dst []int32) []int32 {
	if len(dst) < len(s.keys) {
		dst = make([]int32, len(s.keys))
	}
	for d := range s.keys {
		dst[d] = s.keys[d][position]
	}
	return dst[:len(s.keys)]
}

func (s *Samples) Target(position int) float32 {
	return s.targets[position]
}

// Paginate groups sample positions by user. Positions of user u are
// positions[paginations[u]:paginations[u+1]].
func (s *Samples) Paginate() (paginations []int, positions []int) {
	nUsers := s.CountUsers()
	paginations = make([]int, nUsers+1)
	for _, u := range s.keys[s.userDimension] {
		paginations[u+1]++
	}
	for u := 0; u < nUsers; u++ {
		paginations[u+1] += paginations[u]
	}
	positions = make([]int, len(s.targets))
	cursor := make([]int, nUsers)
	copy(cursor, paginations[:nUsers])
	for pos, u := range s.keys[s.userDimension] {
		positions[cursor[u]] = pos
		cursor[u]++
	}
	return
}

// Matrix builds the user-item interaction matrix weighted by targets. A user-item pair
// observed in more than one sample is an error.
func (s *Samples) Matrix() (*Matrix, error) {
	builder := NewMatrixBuilder(s.CountUsers(), s.CountItems())
	for pos := range s.targets {
		if err := builder.Add(s.keys[s.userDimension][pos], s.keys[s.itemDimension][pos], s.targets[pos]); err != nil {
			return nil, errors.Annotatef(err, "sample %d", pos)
		}
	}
	return builder.Build(), nil
}

// Scores returns the distinct targets in ascending order, the rating levels.
func (s *Samples) Scores() []float32 {
	scores := lo.Uniq(s.targets)
	sort.Slice(scores, func(i, j int) bool { return scores[i] < scores[j] })
	return scores
}

// Split samples into a train set and a test set holding about testRatio of samples.
// Both sets share dictionaries and dimension sizes with the receiver.
func (s *Samples) Split(testRatio float32, seed int64) (train, test *Samples) {
	rng := base.NewRandomGenerator(seed)
	perm := rng.Perm(s.Count())
	numTest := int(float32(s.Count()) * testRatio)
	train, test = s.emptyCopy(), s.emptyCopy()
	for i, pos := range perm {
		dst := train
		if i < numTest {
			dst = test
		}
		for d := range s.keys {
			dst.keys[d] = append(dst.keys[d], s.keys[d][pos])
		}
		dst.targets = append(dst.targets, s.targets[pos])
	}
	return
}

func (s *Samples) emptyCopy() *Samples {
	return &Samples{
		names:         s.names,
		dicts:         s.dicts,
		sizes:         append([]int(nil), s.sizes...),
		keys:          make([][]int32, len(s.names)),
		userDimension: s.userDimension,
		itemDimension: s.itemDimension,
	}
}

// Filter returns samples at positions where keep returns true. The result shares
// dictionaries and dimension sizes with the receiver.
func (s *Samples) Filter(keep func(pos int) bool) *Samples {
	filtered := s.emptyCopy()
	for pos := range s.targets {
		if !keep(pos) {
			continue
		}
		for d := range s.keys {
			filtered.keys[d] = append(filtered.keys[d], s.keys[d][pos])
		}
		filtered.targets = append(filtered.targets, s.targets[pos])
	}
	return filtered
}
