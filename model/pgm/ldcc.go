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
	"context"
	"fmt"
	"time"

	"github.com/c-bata/goptuna"
	"github.com/chewxy/math32"
	"github.com/gorse-io/lab/base/log"
	"github.com/gorse-io/lab/base/progress"
	"github.com/gorse-io/lab/common/parallel"
	"github.com/gorse-io/lab/dataset"
	"github.com/gorse-io/lab/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type Score struct {
	Perplexity float32 // perplexity of the train set under the latest estimate
	Converged  bool    // perplexity increased after at least two readouts
	Epochs     int     // number of completed passes
}

// LDCC is the latent Dirichlet co-clustering model. Users and items are softly assigned
// to user clusters and item clusters, and every pair of clusters owns a distribution
// over rating levels. The model is fitted by collapsed Gibbs sampling and parameters are
// averaged over readouts [Bayesian Co-clustering].
//
// Hyper-parameters:
//
//	NUserTopics - The number of user clusters. Default is 10.
//	NItemTopics - The number of item clusters. Default is 10.
//	UserAlpha   - The prior of user clusters. Default is 1/NUserTopics.
//	ItemAlpha   - The prior of item clusters. Default is 1/NItemTopics.
//	RatingBeta  - The prior of rating levels. Default is 1/(number of rating levels).
//	NEpochs     - The maximum number of passes. Default is 100.
//	BurnIn      - The number of passes before the first readout. Default is 0.
//	SampleLag   - The number of passes between readouts. Default is 1.
type LDCC struct {
	model.BaseModel
	UserTopicProbabilities [][]float32       // P(k|u)
	ItemTopicProbabilities [][]float32       // P(l|i)
	RatingProbabilities    *Tensor[float32]  // P(r|k,l)
	Scores                 []float32         // rating levels in ascending order
	ratingIndex            map[float32]int32 // rating to level
	userDimension          int
	itemDimension          int
	// Hyper parameters
	nUserTopics int
	nItemTopics int
	userAlpha   float32
	itemAlpha   float32
	ratingBeta  float32 // zero means 1/(number of rating levels)
	nEpochs     int
	burnIn      int
	sampleLag   int
}

// NewLDCC creates a LDCC model.
func NewLDCC(params model.Params) *LDCC {
	m := new(LDCC)
	m.SetParams(params)
	return m
}

// SetParams sets hyper-parameters of the LDCC model.
func (m *LDCC) SetParams(params model.Params) {
	m.BaseModel.SetParams(params)
	m.nUserTopics = m.Params.GetInt(model.NUserTopics, 10)
	m.nItemTopics = m.Params.GetInt(model.NItemTopics, 10)
	m.userAlpha = m.Params.GetFloat32(model.UserAlpha, 1/float32(m.nUserTopics))
	m.itemAlpha = m.Params.GetFloat32(model.ItemAlpha, 1/float32(m.nItemTopics))
	m.ratingBeta = m.Params.GetFloat32(model.RatingBeta, 0)
	m.nEpochs = m.Params.GetInt(model.NEpochs, 100)
	m.burnIn = m.Params.GetInt(model.BurnIn, 0)
	m.sampleLag = m.Params.GetInt(model.SampleLag, 1)
}

func (m *LDCC) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.NEpochs:     m.nEpochs,
		model.BurnIn:      m.burnIn,
		model.SampleLag:   m.sampleLag,
		model.NUserTopics: lo.Must(trial.SuggestInt(string(model.NUserTopics), 2, 20)),
		model.NItemTopics: lo.Must(trial.SuggestInt(string(model.NItemTopics), 2, 20)),
		model.UserAlpha:   lo.Must(trial.SuggestLogFloat(string(model.UserAlpha), 0.01, 1)),
		model.ItemAlpha:   lo.Must(trial.SuggestLogFloat(string(model.ItemAlpha), 0.01, 1)),
		model.RatingBeta:  lo.Must(trial.SuggestLogFloat(string(model.RatingBeta), 0.01, 1)),
	}
}

func (m *LDCC) Clear() {
	m.UserTopicProbabilities = nil
	m.ItemTopicProbabilities = nil
	m.RatingProbabilities = nil
	m.Scores = nil
	m.ratingIndex = nil
}

func (m *LDCC) Invalid() bool {
	return m == nil || m.RatingProbabilities == nil
}

func (m *LDCC) validate() error {
	if m.nUserTopics <= 0 || m.nItemTopics <= 0 {
		return errors.NotValidf("number of clusters (%d, %d)", m.nUserTopics, m.nItemTopics)
	}
	if m.userAlpha <= 0 || m.itemAlpha <= 0 {
		return errors.NotValidf("cluster priors (%v, %v)", m.userAlpha, m.itemAlpha)
	}
	if m.ratingBeta < 0 {
		return errors.NotValidf("rating prior %v", m.ratingBeta)
	}
	if m.nEpochs <= 0 {
		return errors.NotValidf("number of epochs %d", m.nEpochs)
	}
	if m.burnIn < 0 || m.sampleLag <= 0 {
		return errors.NotValidf("burn-in %d and sample lag %d", m.burnIn, m.sampleLag)
	}
	return nil
}

// Fit the LDCC model. Parameters are read out after each pass past burn-in at sample
// lag intervals, and training stops once the train set perplexity increases after at
// least two readouts. Cancelling ctx stops training at the next pass boundary.
func (m *LDCC) Fit(ctx context.Context, trainSet *dataset.Samples, config *model.FitConfig) (Score, error) {
	config = config.LoadDefaultIfNil()
	if err := m.validate(); err != nil {
		return Score{}, errors.Trace(err)
	}
	if trainSet.Count() == 0 {
		return Score{}, errors.NotValidf("empty train set")
	}
	log.Logger().Info("fit ldcc",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Any("params", m.GetParams()),
		zap.Any("config", config))
	g, err := m.prepare(trainSet)
	if err != nil {
		return Score{}, errors.Trace(err)
	}

	var score Score
	_, span := progress.Start(ctx, "LDCC.Fit", m.nEpochs)
	defer span.End()
	for epoch := 1; epoch <= m.nEpochs; epoch++ {
		if ctx.Err() != nil {
			log.Logger().Warn("fit ldcc cancelled", zap.Int("epoch", score.Epochs))
			break
		}
		fitStart := time.Now()
		g.eStep()
		score.Epochs = epoch
		if epoch > m.burnIn && epoch%m.sampleLag == 0 {
			g.readout()
			perplexity := m.estimate(g)
			fitTime := time.Since(fitStart)
			if epoch%config.Verbose == 0 || epoch == m.nEpochs {
				log.Logger().Info(fmt.Sprintf("fit ldcc %v/%v", epoch, m.nEpochs),
					zap.String("fit_time", fitTime.String()),
					zap.Float32("perplexity", perplexity))
			} else {
				log.Logger().Debug(fmt.Sprintf("fit ldcc %v/%v", epoch, m.nEpochs),
					zap.String("fit_time", fitTime.String()),
					zap.Float32("perplexity", perplexity))
			}
			if g.numberOfStatistics > 1 && perplexity > score.Perplexity {
				score.Converged = true
				score.Perplexity = perplexity
				span.Add(1)
				break
			}
			score.Perplexity = perplexity
		}
		span.Add(1)
	}
	if g.numberOfStatistics == 0 {
		// no pass reached a readout
		g.readout()
		score.Perplexity = m.estimate(g)
	}
	log.Logger().Info("fit ldcc complete",
		zap.Float32("perplexity", score.Perplexity),
		zap.Bool("converged", score.Converged),
		zap.Int("epochs", score.Epochs))
	return score, nil
}

// prepare resolves rating levels and initializes the sampler with random assignments.
func (m *LDCC) prepare(trainSet *dataset.Samples) (*gibbs, error) {
	matrix, err := trainSet.Matrix()
	if err != nil {
		return nil, errors.Trace(err)
	}
	m.Scores = trainSet.Scores()
	m.ratingIndex = make(map[float32]int32, len(m.Scores))
	for i, rating := range m.Scores {
		m.ratingIndex[rating] = int32(i)
	}
	ratingLevels := make([]int32, matrix.Count())
	matrix.ForEach(func(pos int, _, _ int32, value float32) {
		ratingLevels[pos] = m.ratingIndex[value]
	})
	ratingBeta := m.ratingBeta
	if ratingBeta == 0 {
		ratingBeta = 1 / float32(len(m.Scores))
	}
	m.userDimension = trainSet.UserDimension()
	m.itemDimension = trainSet.ItemDimension()
	return newGibbs(matrix, ratingLevels, len(m.Scores), m.nUserTopics, m.nItemTopics,
		m.userAlpha, m.itemAlpha, ratingBeta, m.GetRandomGenerator()), nil
}

// estimate replaces model parameters by the averaged readouts and returns the
// perplexity of the observations of the sampler.
func (m *LDCC) estimate(g *gibbs) float32 {
	m.UserTopicProbabilities, m.ItemTopicProbabilities, m.RatingProbabilities = g.estimate()
	var sum float32
	g.matrix.ForEach(func(pos int, userIndex, itemIndex int32, _ float32) {
		sum -= math32.Log(m.probability(userIndex, itemIndex, int(g.ratingLevels[pos])))
	})
	return math32.Exp(sum / float32(g.matrix.Count()))
}

// probability returns P(r|u,i) = \sum_{k,l} P(r|k,l) P(k|u) P(l|i).
func (m *LDCC) probability(userIndex, itemIndex int32, ratingLevel int) float32 {
	var probability float32
	for k, userProbability := range m.UserTopicProbabilities[userIndex] {
		for l, itemProbability := range m.ItemTopicProbabilities[itemIndex] {
			probability += m.RatingProbabilities.Get(k, l, ratingLevel) * userProbability * itemProbability
		}
	}
	return probability
}

func (m *LDCC) predictable(userIndex, itemIndex int32) bool {
	return userIndex >= 0 && int(userIndex) < len(m.UserTopicProbabilities) &&
		itemIndex >= 0 && int(itemIndex) < len(m.ItemTopicProbabilities)
}

// RatingDistribution returns P(r|u,i) for every rating level.
func (m *LDCC) RatingDistribution(userIndex, itemIndex int32) ([]float32, error) {
	if !m.predictable(userIndex, itemIndex) {
		return nil, errors.NotFoundf("user %d or item %d", userIndex, itemIndex)
	}
	distribution := make([]float32, len(m.Scores))
	for r := range m.Scores {
		distribution[r] = m.probability(userIndex, itemIndex, r)
	}
	return distribution, nil
}

// Predict returns the expected rating \sum_r r P(r|u,i). Zero is returned for unknown
// users or items.
func (m *LDCC) Predict(userIndex, itemIndex int32) float32 {
	distribution, err := m.RatingDistribution(userIndex, itemIndex)
	if err != nil {
		log.Logger().Warn("unknown user or item",
			zap.Int32("user_index", userIndex),
			zap.Int32("item_index", itemIndex))
		return 0
	}
	var value float32
	for r, rating := range m.Scores {
		value += rating * distribution[r]
	}
	return value
}

// PredictKeys predicts the rating of a sample given by feature keys.
func (m *LDCC) PredictKeys(keys []int32) float32 {
	return m.Predict(keys[m.userDimension], keys[m.itemDimension])
}

// BatchPredict predicts every sample of a data set using jobs goroutines.
func (m *LDCC) BatchPredict(ctx context.Context, samples *dataset.Samples, jobs int) ([]float32, error) {
	predictions := make([]float32, samples.Count())
	err := parallel.Parallel(ctx, samples.Count(), jobs, func(_, jobId int) error {
		predictions[jobId] = m.Predict(samples.Key(samples.UserDimension(), jobId), samples.Key(samples.ItemDimension(), jobId))
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return predictions, nil
}

// Perplexity evaluates exp(mean -log P(r|u,i)) over samples. Every rating must be one of
// the rating levels seen in training.
func (m *LDCC) Perplexity(samples *dataset.Samples) (float32, error) {
	if samples.Count() == 0 {
		return 0, errors.NotValidf("empty data set")
	}
	var sum float32
	for pos := 0; pos < samples.Count(); pos++ {
		userIndex := samples.Key(samples.UserDimension(), pos)
		itemIndex := samples.Key(samples.ItemDimension(), pos)
		ratingLevel, ok := m.ratingIndex[samples.Target(pos)]
		if !ok {
			return 0, errors.NotValidf("rating %v", samples.Target(pos))
		}
		if !m.predictable(userIndex, itemIndex) {
			return 0, errors.NotFoundf("user %d or item %d", userIndex, itemIndex)
		}
		sum -= math32.Log(m.probability(userIndex, itemIndex, int(ratingLevel)))
	}
	return math32.Exp(sum / float32(samples.Count())), nil
}
