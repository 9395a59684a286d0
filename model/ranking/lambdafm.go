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

package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/c-bata/goptuna"
	"github.com/gorse-io/lab/base"
	"github.com/gorse-io/lab/base/log"
	"github.com/gorse-io/lab/base/progress"
	"github.com/gorse-io/lab/common/parallel"
	"github.com/gorse-io/lab/common/sampling"
	"github.com/gorse-io/lab/dataset"
	"github.com/gorse-io/lab/model"
	"github.com/gorse-io/lab/model/fm"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type Score struct {
	Loss float32 // mean -log(sigmoid(margin)) of the last epoch
}

// LambdaFM learns a factorization machine from implicit feedback by pairwise ranking.
// Each step draws a user, one of the user's samples as the positive and an item the
// user never interacted with as the negative. Negative items are drawn from a static
// distribution favoring popular items [LambdaFM: Learning Optimal Ranking with
// Factorization Machines Using Lambda Surrogates].
//
// Hyper-parameters:
//
//	ItemDistribution - The decay of item popularity weights, must be positive. Smaller
//	                   values concentrate negatives on popular items. Required.
//	LossType         - The pairwise loss: logistic, hinge or exponential. Default is logistic.
//	Lr               - The learning rate of SGD. Default is 0.01.
//	Reg              - The regularization parameter. Default is 0.01.
//	NFactors         - The number of latent factors. Default is 10.
//	NEpochs          - The number of epochs. Default is 100.
//	InitMean         - The mean of initial latent factors. Default is 0.
//	InitStdDev       - The standard deviation of initial latent factors. Default is 0.01.
type LambdaFM struct {
	model.BaseModel
	FM *fm.FactorizationMachine
	// Item sampling distribution, indexed by item
	ItemProbabilities sampling.Cumulative
	itemDimension     int
	// Hyper parameters
	rho        float32
	lossType   string
	nFactors   int
	nEpochs    int
	lr         float32
	reg        float32
	initMean   float32
	initStdDev float32
}

// NewLambdaFM creates a LambdaFM model.
func NewLambdaFM(params model.Params) *LambdaFM {
	m := new(LambdaFM)
	m.SetParams(params)
	return m
}

// SetParams sets hyper-parameters of the LambdaFM model.
func (m *LambdaFM) SetParams(params model.Params) {
	m.BaseModel.SetParams(params)
	m.rho = m.Params.GetFloat32(model.ItemDistribution, 0)
	m.lossType = m.Params.GetString(model.LossType, LogisticLoss)
	m.nFactors = m.Params.GetInt(model.NFactors, 10)
	m.nEpochs = m.Params.GetInt(model.NEpochs, 100)
	m.lr = m.Params.GetFloat32(model.Lr, 0.01)
	m.reg = m.Params.GetFloat32(model.Reg, 0.01)
	m.initMean = m.Params.GetFloat32(model.InitMean, 0)
	m.initStdDev = m.Params.GetFloat32(model.InitStdDev, 0.01)
}

func (m *LambdaFM) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.NFactors:         m.nFactors,
		model.NEpochs:          m.nEpochs,
		model.LossType:         lo.Must(trial.SuggestCategorical(string(model.LossType), lossTypes)),
		model.ItemDistribution: lo.Must(trial.SuggestLogFloat(string(model.ItemDistribution), 0.01, 1)),
		model.Lr:               lo.Must(trial.SuggestLogFloat(string(model.Lr), 0.001, 0.1)),
		model.Reg:              lo.Must(trial.SuggestLogFloat(string(model.Reg), 0.001, 0.1)),
		model.InitMean:         0,
		model.InitStdDev:       lo.Must(trial.SuggestLogFloat(string(model.InitStdDev), 0.001, 0.1)),
	}
}

func (m *LambdaFM) Clear() {
	m.FM = nil
	m.ItemProbabilities = nil
}

func (m *LambdaFM) Invalid() bool {
	return m == nil || m.FM == nil
}

func (m *LambdaFM) validate() error {
	if m.rho <= 0 {
		return errors.NotValidf("item distribution parameter %v", m.rho)
	}
	if m.nFactors <= 0 {
		return errors.NotValidf("number of factors %v", m.nFactors)
	}
	if m.nEpochs <= 0 {
		return errors.NotValidf("number of epochs %v", m.nEpochs)
	}
	if !lo.Contains(lossTypes, m.lossType) {
		return errors.NotValidf("loss type %s", m.lossType)
	}
	return nil
}

// Fit the LambdaFM model. Each epoch performs as many steps as there are samples.
// Cancelling ctx stops training at the next epoch boundary and keeps the parameters
// learned so far.
func (m *LambdaFM) Fit(ctx context.Context, trainSet *dataset.Samples, config *model.FitConfig) (Score, error) {
	config = config.LoadDefaultIfNil()
	if err := m.validate(); err != nil {
		return Score{}, errors.Trace(err)
	}
	log.Logger().Info("fit lambdafm",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Any("params", m.GetParams()),
		zap.Any("config", config))
	t, err := m.prepare(trainSet)
	if err != nil {
		return Score{}, errors.Trace(err)
	}

	var score Score
	_, span := progress.Start(ctx, "LambdaFM.Fit", m.nEpochs)
	defer span.End()
	for epoch := 1; epoch <= m.nEpochs; epoch++ {
		if ctx.Err() != nil {
			log.Logger().Warn("fit lambdafm cancelled", zap.Int("epoch", epoch-1))
			break
		}
		fitStart := time.Now()
		var totalLoss float32
		for i := 0; i < trainSet.Count(); i++ {
			totalLoss += t.step()
		}
		score.Loss = totalLoss / float32(trainSet.Count())
		fitTime := time.Since(fitStart)
		if epoch%config.Verbose == 0 || epoch == m.nEpochs {
			log.Logger().Info(fmt.Sprintf("fit lambdafm %v/%v", epoch, m.nEpochs),
				zap.String("fit_time", fitTime.String()),
				zap.Float32("loss", score.Loss))
		} else {
			log.Logger().Debug(fmt.Sprintf("fit lambdafm %v/%v", epoch, m.nEpochs),
				zap.String("fit_time", fitTime.String()),
				zap.Float32("loss", score.Loss))
		}
		span.Add(1)
	}
	log.Logger().Info("fit lambdafm complete", zap.Float32("loss", score.Loss))
	return score, nil
}

// prepare initializes model parameters and the sampling state of a training run.
func (m *LambdaFM) prepare(trainSet *dataset.Samples) (*trainer, error) {
	matrix, err := trainSet.Matrix()
	if err != nil {
		return nil, errors.Trace(err)
	}
	popularity := make([]int, matrix.CountItems())
	for i := range popularity {
		popularity[i] = matrix.ColumnSize(int32(i))
	}
	m.ItemProbabilities = sampling.NewPopularityDistribution(popularity, m.rho)
	m.itemDimension = trainSet.ItemDimension()
	m.FM = fm.NewFactorizationMachine(trainSet.DimensionSizes(), m.nFactors, m.initMean, m.initStdDev, m.GetRandomGenerator())

	t := &trainer{
		model:    m,
		samples:  trainSet,
		rng:      m.GetRandomGenerator(),
		eligible: bitset.New(uint(matrix.CountUsers())),
		positive: make([]int32, trainSet.CountDimensions()),
		negative: make([]int32, trainSet.CountDimensions()),
	}
	// each row holds the cumulative probability of its item
	t.matrix = matrix.Reweight(func(_, itemIndex int32, _ float32) float32 {
		return m.ItemProbabilities[itemIndex]
	})
	for userIndex := int32(0); int(userIndex) < matrix.CountUsers(); userIndex++ {
		items, _ := matrix.Row(userIndex)
		if len(items) > 0 && m.negativeMass(items) >= minNegativeMass {
			t.eligible.Set(uint(userIndex))
		}
	}
	if t.eligible.None() {
		return nil, errors.NotValidf("train set without any user having both positive and sampleable negative items")
	}
	t.paginations, t.positions = trainSet.Paginate()
	return t, nil
}

// minNegativeMass is the least share of the item distribution held by items outside a
// user's row for the user to be sampled.
const minNegativeMass = 1.0 / (1 << 20)

// negativeMass returns the share of the item distribution held by items not in items.
// Weights are differences of float32 cumulative values, so they are exact in float64.
func (m *LambdaFM) negativeMass(items []int32) float64 {
	probabilities := m.ItemProbabilities
	total := float64(probabilities.Total())
	if total <= 0 {
		return 0
	}
	mass := total
	for _, itemIndex := range items {
		mass -= float64(probabilities[itemIndex])
		if itemIndex > 0 {
			mass += float64(probabilities[itemIndex-1])
		}
	}
	return mass / total
}

// trainer holds the sampling state of a training run.
type trainer struct {
	model       *LambdaFM
	samples     *dataset.Samples
	matrix      *dataset.Matrix // interactions weighted by item cumulative probability
	rng         base.RandomGenerator
	eligible    *bitset.BitSet
	paginations []int
	positions   []int
	positive    []int32
	negative    []int32
}

// step draws a training triple, updates the model and returns -log(sigmoid(margin)).
func (t *trainer) step() float32 {
	userIndex := t.drawUser()
	t.samples.Keys(t.drawPosition(userIndex), t.positive)
	negativeItem := t.drawNegativeItem(userIndex)
	// context of the negative sample comes from another draw of the user's samples
	t.samples.Keys(t.drawPosition(userIndex), t.negative)
	t.negative[t.model.itemDimension] = negativeItem

	margin := t.model.FM.Predict(t.positive) - t.model.FM.Predict(t.negative)
	grad, _ := Gradient(t.model.lossType, margin)
	t.model.FM.Update(t.positive, t.negative, grad, t.model.lr, t.model.reg)
	return LogLoss(margin)
}

// drawUser picks a user uniformly, rejecting users with no positive item or almost no
// negative probability mass.
func (t *trainer) drawUser() int32 {
	for {
		userIndex := int32(t.rng.Intn(t.matrix.CountUsers()))
		if t.eligible.Test(uint(userIndex)) {
			return userIndex
		}
	}
}

// drawPosition picks one of the user's samples uniformly.
func (t *trainer) drawPosition(userIndex int32) int {
	return t.positions[t.rng.IntRange(t.paginations[userIndex], t.paginations[userIndex+1])]
}

// drawNegativeItem draws an item the user never interacted with. A gap between two
// consecutive interacted items is located by searching the user's row of cumulative
// probabilities, then an item is drawn from the popularity distribution bounded by
// the gap. Draws landing on an interacted item are rejected.
func (t *trainer) drawNegativeItem(userIndex int32) int32 {
	items, values := t.matrix.Row(userIndex)
	probabilities := t.model.ItemProbabilities
	for {
		var low, high int
		position := sampling.BinarySearch(values, 0, len(values)-1, t.rng.Float32n(probabilities.Total()))
		switch position {
		case -1:
			low, high = int(items[len(items)-1]), len(probabilities)-1
		case 0:
			low, high = 0, int(items[0])
		default:
			low, high = int(items[position-1]), int(items[position])
		}
		itemIndex := probabilities.Sample(t.rng, low, high)
		if itemIndex >= 0 && !t.matrix.Contains(userIndex, int32(itemIndex)) {
			return int32(itemIndex)
		}
	}
}

// Predict scores a sample given by feature keys.
func (m *LambdaFM) Predict(keys []int32) float32 {
	return m.FM.Predict(keys)
}

// Candidate is an item with its predicted score.
type Candidate struct {
	ItemIndex int32
	Score     float32
}

// Rank scores each candidate item in the context of keys and returns the top n in
// descending order of score. All candidates are returned if n is not positive.
func (m *LambdaFM) Rank(keys []int32, candidates []int32, n int) []Candidate {
	buf := make([]int32, len(keys))
	copy(buf, keys)
	result := make([]Candidate, len(candidates))
	for i, itemIndex := range candidates {
		buf[m.itemDimension] = itemIndex
		result[i] = Candidate{ItemIndex: itemIndex, Score: m.FM.Predict(buf)}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	if n > 0 && n < len(result) {
		result = result[:n]
	}
	return result
}

// BatchPredict scores every sample of a data set using jobs goroutines.
func (m *LambdaFM) BatchPredict(ctx context.Context, samples *dataset.Samples, jobs int) ([]float32, error) {
	predictions := make([]float32, samples.Count())
	buffers := make([][]int32, max(jobs, 1))
	err := parallel.Parallel(ctx, samples.Count(), jobs, func(workerId, jobId int) error {
		buffers[workerId] = samples.Keys(jobId, buffers[workerId])
		predictions[jobId] = m.FM.Predict(buffers[workerId])
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return predictions, nil
}
