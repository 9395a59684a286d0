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

	"github.com/c-bata/goptuna"
	"github.com/gorse-io/lab/base/log"
	"github.com/gorse-io/lab/dataset"
	"github.com/gorse-io/lab/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// ModelSearch searches hyper-parameters of LDCC minimizing perplexity. Perplexity is
// evaluated on the validation set if given, otherwise on the train set.
type ModelSearch struct {
	params     model.Params
	trainSet   *dataset.Samples
	validSet   *dataset.Samples
	config     *model.FitConfig
	bestParams model.Params
	bestScore  float32
	found      bool
}

func NewModelSearch(params model.Params, trainSet, validSet *dataset.Samples, config *model.FitConfig) *ModelSearch {
	return &ModelSearch{
		params:   params,
		trainSet: trainSet,
		validSet: validSet,
		config:   config,
	}
}

func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	m := NewLDCC(ms.params)
	params := ms.params.Overwrite(m.SuggestParams(trial))
	m.SetParams(params)
	score, err := m.Fit(context.Background(), ms.trainSet, ms.config)
	if err != nil {
		return 0, errors.Trace(err)
	}
	perplexity := score.Perplexity
	if ms.validSet != nil {
		if perplexity, err = m.Perplexity(ms.validSet); err != nil {
			return 0, errors.Trace(err)
		}
	}
	log.Logger().Info("search ldcc",
		zap.Any("params", params),
		zap.Float32("perplexity", perplexity))
	if !ms.found || perplexity < ms.bestScore {
		ms.found = true
		ms.bestScore = perplexity
		ms.bestParams = params.Copy()
	}
	return float64(perplexity), nil
}

// Result returns the best hyper-parameters and their perplexity.
func (ms *ModelSearch) Result() (model.Params, float32) {
	return ms.bestParams, ms.bestScore
}
