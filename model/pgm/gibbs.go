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
	"github.com/gorse-io/lab/base"
	"github.com/gorse-io/lab/common/floats"
	"github.com/gorse-io/lab/common/sampling"
	"github.com/gorse-io/lab/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// gibbs is the collapsed Gibbs sampler of LDCC. Every observation, identified by its
// position in the interaction matrix, holds one user topic and one item topic. Counts
// are updated only by paired retract and commit.
type gibbs struct {
	matrix       *dataset.Matrix
	ratingLevels []int32 // rating level of each observation
	nUserTopics  int
	nItemTopics  int
	nRatings     int
	userAlpha    float32
	itemAlpha    float32
	ratingBeta   float32
	rng          base.RandomGenerator

	// assignments
	userTopics []int32
	itemTopics []int32
	// sufficient statistics
	userTopicCounts   [][]int32 // Nuk
	itemTopicCounts   [][]int32 // Nil
	ratingTopicCounts *Tensor[int32]
	userTotal         []int32
	itemTotal         []int32
	topicPairTotal    [][]int32

	// running sums of smoothed estimates
	userTopicSums      [][]float32
	itemTopicSums      [][]float32
	ratingTopicSums    *Tensor[float32]
	numberOfStatistics int

	// scratch
	table          []float32 // nUserTopics x nItemTopics
	userCumulative []float32
	itemCumulative []float32
}

func newGibbs(matrix *dataset.Matrix, ratingLevels []int32, nRatings, nUserTopics, nItemTopics int,
	userAlpha, itemAlpha, ratingBeta float32, rng base.RandomGenerator) *gibbs {
	g := &gibbs{
		matrix:            matrix,
		ratingLevels:      ratingLevels,
		nUserTopics:       nUserTopics,
		nItemTopics:       nItemTopics,
		nRatings:          nRatings,
		userAlpha:         userAlpha,
		itemAlpha:         itemAlpha,
		ratingBeta:        ratingBeta,
		rng:               rng,
		userTopics:        make([]int32, matrix.Count()),
		itemTopics:        make([]int32, matrix.Count()),
		userTopicCounts:   newInt32Matrix(matrix.CountUsers(), nUserTopics),
		itemTopicCounts:   newInt32Matrix(matrix.CountItems(), nItemTopics),
		ratingTopicCounts: NewTensor[int32](nUserTopics, nItemTopics, nRatings),
		userTotal:         make([]int32, matrix.CountUsers()),
		itemTotal:         make([]int32, matrix.CountItems()),
		topicPairTotal:    newInt32Matrix(nUserTopics, nItemTopics),
		userTopicSums:     newFloat32Matrix(matrix.CountUsers(), nUserTopics),
		itemTopicSums:     newFloat32Matrix(matrix.CountItems(), nItemTopics),
		ratingTopicSums:   NewTensor[float32](nUserTopics, nItemTopics, nRatings),
		table:             make([]float32, nUserTopics*nItemTopics),
		userCumulative:    make([]float32, nUserTopics),
		itemCumulative:    make([]float32, nItemTopics),
	}
	// random initial assignments
	for pos := 0; pos < matrix.Count(); pos++ {
		g.commit(pos, int32(rng.Intn(nUserTopics)), int32(rng.Intn(nItemTopics)))
	}
	return g
}

func newInt32Matrix(row, col int) [][]int32 {
	m := make([][]int32, row)
	for i := range m {
		m[i] = make([]int32, col)
	}
	return m
}

func newFloat32Matrix(row, col int) [][]float32 {
	m := make([][]float32, row)
	for i := range m {
		m[i] = make([]float32, col)
	}
	return m
}

// retract removes an observation from the counts and returns its topics.
func (g *gibbs) retract(pos int) (userTopic, itemTopic int32) {
	userIndex, itemIndex, _ := g.matrix.At(pos)
	userTopic, itemTopic = g.userTopics[pos], g.itemTopics[pos]
	g.userTopicCounts[userIndex][userTopic]--
	g.userTotal[userIndex]--
	g.itemTopicCounts[itemIndex][itemTopic]--
	g.itemTotal[itemIndex]--
	g.ratingTopicCounts.Add(int(userTopic), int(itemTopic), int(g.ratingLevels[pos]), -1)
	g.topicPairTotal[userTopic][itemTopic]--
	return
}

// commit assigns topics to an observation and adds it to the counts.
func (g *gibbs) commit(pos int, userTopic, itemTopic int32) {
	userIndex, itemIndex, _ := g.matrix.At(pos)
	g.userTopicCounts[userIndex][userTopic]++
	g.userTotal[userIndex]++
	g.itemTopicCounts[itemIndex][itemTopic]++
	g.itemTotal[itemIndex]++
	g.ratingTopicCounts.Add(int(userTopic), int(itemTopic), int(g.ratingLevels[pos]), 1)
	g.topicPairTotal[userTopic][itemTopic]++
	g.userTopics[pos] = userTopic
	g.itemTopics[pos] = itemTopic
}

// score fills the table of unnormalized probabilities of topic pairs for a retracted
// observation. Entry (k, l) is
//
//	(Nuk + αu) / (Nu + Ku·αu) · (N[old][l] + αi) / (Ni + Ki·αi) · (Nklr + β) / (Nkl + R·β)
//
// where the item factor is conditioned on the retracted user topic old and reads the
// user-topic counts at row old. Cells outside the user-topic count matrix read as zero.
func (g *gibbs) score(pos int, oldUserTopic int32) {
	userIndex, itemIndex, _ := g.matrix.At(pos)
	ratingLevel := int(g.ratingLevels[pos])
	userDenominator := float32(g.userTotal[userIndex]) + float32(g.nUserTopics)*g.userAlpha
	itemDenominator := float32(g.itemTotal[itemIndex]) + float32(g.nItemTopics)*g.itemAlpha
	for k := 0; k < g.nUserTopics; k++ {
		v1 := (float32(g.userTopicCounts[userIndex][k]) + g.userAlpha) / userDenominator
		for l := 0; l < g.nItemTopics; l++ {
			v2 := (float32(g.userTopicCount(oldUserTopic, l)) + g.itemAlpha) / itemDenominator
			v3 := (float32(g.ratingTopicCounts.Get(k, l, ratingLevel)) + g.ratingBeta) /
				(float32(g.topicPairTotal[k][l]) + float32(g.nRatings)*g.ratingBeta)
			g.table[k*g.nItemTopics+l] = v1 * v2 * v3
		}
	}
}

func (g *gibbs) userTopicCount(row int32, col int) int32 {
	if int(row) >= len(g.userTopicCounts) || col >= g.nUserTopics {
		return 0
	}
	return g.userTopicCounts[row][col]
}

// draw samples the user topic from the row sums and the item topic from the column
// sums of the table, independently.
func (g *gibbs) draw() (userTopic, itemTopic int32) {
	floats.Zero(g.userCumulative)
	floats.Zero(g.itemCumulative)
	for k := 0; k < g.nUserTopics; k++ {
		for l := 0; l < g.nItemTopics; l++ {
			value := g.table[k*g.nItemTopics+l]
			g.userCumulative[k] += value
			g.itemCumulative[l] += value
		}
	}
	userSum := floats.CumSum(g.userCumulative)
	itemSum := floats.CumSum(g.itemCumulative)
	userTopic = int32(sampling.BinarySearch(g.userCumulative, 0, g.nUserTopics-1, g.rng.Float32n(userSum)))
	itemTopic = int32(sampling.BinarySearch(g.itemCumulative, 0, g.nItemTopics-1, g.rng.Float32n(itemSum)))
	return
}

// resample draws new topics of an observation.
func (g *gibbs) resample(pos int) {
	oldUserTopic, _ := g.retract(pos)
	g.score(pos, oldUserTopic)
	userTopic, itemTopic := g.draw()
	g.commit(pos, userTopic, itemTopic)
}

// eStep resamples every observation once.
func (g *gibbs) eStep() {
	for pos := 0; pos < g.matrix.Count(); pos++ {
		g.resample(pos)
	}
}

// readout adds the smoothed estimates of the current counts to the running sums.
func (g *gibbs) readout() {
	for userIndex := range g.userTopicCounts {
		denominator := float32(g.userTotal[userIndex]) + float32(g.nUserTopics)*g.userAlpha
		for k := range g.userTopicCounts[userIndex] {
			g.userTopicSums[userIndex][k] += (float32(g.userTopicCounts[userIndex][k]) + g.userAlpha) / denominator
		}
	}
	for itemIndex := range g.itemTopicCounts {
		denominator := float32(g.itemTotal[itemIndex]) + float32(g.nItemTopics)*g.itemAlpha
		for l := range g.itemTopicCounts[itemIndex] {
			g.itemTopicSums[itemIndex][l] += (float32(g.itemTopicCounts[itemIndex][l]) + g.itemAlpha) / denominator
		}
	}
	for k := 0; k < g.nUserTopics; k++ {
		for l := 0; l < g.nItemTopics; l++ {
			denominator := float32(g.topicPairTotal[k][l]) + float32(g.nRatings)*g.ratingBeta
			sums := g.ratingTopicSums.Fiber(k, l)
			for r, count := range g.ratingTopicCounts.Fiber(k, l) {
				sums[r] += (float32(count) + g.ratingBeta) / denominator
			}
		}
	}
	g.numberOfStatistics++
}

// estimate returns the running averages of the readouts.
func (g *gibbs) estimate() (userTopicProbabilities, itemTopicProbabilities [][]float32, ratingProbabilities *Tensor[float32]) {
	scale := 1 / float32(g.numberOfStatistics)
	userTopicProbabilities = newFloat32Matrix(len(g.userTopicSums), g.nUserTopics)
	for userIndex := range g.userTopicSums {
		floats.MulConstTo(g.userTopicSums[userIndex], scale, userTopicProbabilities[userIndex])
	}
	itemTopicProbabilities = newFloat32Matrix(len(g.itemTopicSums), g.nItemTopics)
	for itemIndex := range g.itemTopicSums {
		floats.MulConstTo(g.itemTopicSums[itemIndex], scale, itemTopicProbabilities[itemIndex])
	}
	ratingProbabilities = NewTensor[float32](g.nUserTopics, g.nItemTopics, g.nRatings)
	floats.MulConstTo(g.ratingTopicSums.data, scale, ratingProbabilities.data)
	return
}

// check verifies that the counts agree with the assignments.
func (g *gibbs) check() error {
	for k := 0; k < g.nUserTopics; k++ {
		for l := 0; l < g.nItemTopics; l++ {
			var sum int32
			for _, count := range g.ratingTopicCounts.Fiber(k, l) {
				if count < 0 {
					return errors.Errorf("negative rating count at topic pair (%d, %d)", k, l)
				}
				sum += count
			}
			if sum != g.topicPairTotal[k][l] {
				return errors.Errorf("rating counts of topic pair (%d, %d) sum to %d, expect %d", k, l, sum, g.topicPairTotal[k][l])
			}
		}
	}
	for userIndex, counts := range g.userTopicCounts {
		if sum := lo.Sum(counts); sum != g.userTotal[userIndex] {
			return errors.Errorf("topic counts of user %d sum to %d, expect %d", userIndex, sum, g.userTotal[userIndex])
		}
	}
	for itemIndex, counts := range g.itemTopicCounts {
		if sum := lo.Sum(counts); sum != g.itemTotal[itemIndex] {
			return errors.Errorf("topic counts of item %d sum to %d, expect %d", itemIndex, sum, g.itemTotal[itemIndex])
		}
	}
	for userIndex := int32(0); int(userIndex) < g.matrix.CountUsers(); userIndex++ {
		if int(g.userTotal[userIndex]) != g.matrix.RowSize(userIndex) {
			return errors.Errorf("user %d has %d assignments, expect %d", userIndex, g.userTotal[userIndex], g.matrix.RowSize(userIndex))
		}
	}
	return nil
}
