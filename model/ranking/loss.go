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
	"github.com/chewxy/math32"
	"github.com/juju/errors"
)

// Pairwise loss functions of the score margin between a positive and a negative sample.
const (
	LogisticLoss    = "logistic"
	HingeLoss       = "hinge"
	ExponentialLoss = "exponential"
)

var lossTypes = []string{LogisticLoss, HingeLoss, ExponentialLoss}

// maxExponent bounds the exponent of the exponential loss gradient, which is therefore
// at most exp(maxExponent).
const maxExponent = 10

// Gradient returns the derivative of the negated loss with respect to the margin, which
// is the step direction to widen the margin.
func Gradient(lossType string, margin float32) (float32, error) {
	switch lossType {
	case LogisticLoss:
		return sigmoid(-margin), nil
	case HingeLoss:
		if margin < 1 {
			return 1, nil
		}
		return 0, nil
	case ExponentialLoss:
		return math32.Exp(min(-margin, maxExponent)), nil
	default:
		return 0, errors.NotValidf("loss type %s", lossType)
	}
}

// LogLoss is -log(sigmoid(margin)), the training loss reported regardless of the loss
// function used for gradients.
func LogLoss(margin float32) float32 {
	if margin < 0 {
		return -margin + math32.Log1p(math32.Exp(margin))
	}
	return math32.Log1p(math32.Exp(-margin))
}

func sigmoid(x float32) float32 {
	if x < 0 {
		e := math32.Exp(x)
		return e / (1 + e)
	}
	return 1 / (1 + math32.Exp(-x))
}
