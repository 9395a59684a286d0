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

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseModel(t *testing.T) {
	var a, b BaseModel
	a.SetParams(Params{RandomState: 42, NFactors: 8})
	b.SetParams(Params{RandomState: int64(42)})
	assert.Equal(t, 8, a.GetParams().GetInt(NFactors, 0))
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.GetRandomGenerator().Int63(), b.GetRandomGenerator().Int63())
	}
}

func TestFitConfig(t *testing.T) {
	var config *FitConfig
	config = config.LoadDefaultIfNil()
	assert.Equal(t, 1, config.Jobs)
	assert.Equal(t, 10, config.Verbose)
	config.SetJobs(4).SetVerbose(1)
	assert.Equal(t, 4, config.Jobs)
	assert.Equal(t, 1, config.Verbose)
}
