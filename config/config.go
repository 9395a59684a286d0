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

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorse-io/lab/model"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration of training runs. Keys follow the rec.* hierarchy, for
// example rec.pgm.user.alpha.
type Config struct {
	Rec RecConfig `mapstructure:"rec"`
}

type RecConfig struct {
	Item     ItemConfig     `mapstructure:"item"`
	PGM      PGMConfig      `mapstructure:"pgm"`
	Iterator IteratorConfig `mapstructure:"iterator"`
	Factor   FactorConfig   `mapstructure:"factor"`
	Init     InitConfig     `mapstructure:"init"`
	Loss     LossConfig     `mapstructure:"loss"`
	Random   RandomConfig   `mapstructure:"random"`
	Fit      FitConfig      `mapstructure:"fit"`
}

type ItemConfig struct {
	Distribution DistributionConfig `mapstructure:"distribution"`
}

type DistributionConfig struct {
	// Parameter is the decay of the popularity distribution, required by ranking models.
	Parameter *float32 `mapstructure:"parameter" validate:"omitempty,gt=0"`
}

type PGMConfig struct {
	Number    NumberConfig `mapstructure:"number"`
	User      AlphaConfig  `mapstructure:"user"`
	Item      AlphaConfig  `mapstructure:"item"`
	Rating    BetaConfig   `mapstructure:"rating"`
	BurnIn    int          `mapstructure:"burnin" validate:"gte=0"`
	SampleLag int          `mapstructure:"samplelag" validate:"gt=0"`
}

type NumberConfig struct {
	Users int `mapstructure:"users" validate:"gt=0"`
	Items int `mapstructure:"items" validate:"gt=0"`
}

type AlphaConfig struct {
	Alpha *float32 `mapstructure:"alpha" validate:"omitempty,gt=0"`
}

type BetaConfig struct {
	Beta *float32 `mapstructure:"beta" validate:"omitempty,gt=0"`
}

type IteratorConfig struct {
	Maximum        int     `mapstructure:"maximum" validate:"gt=0"`
	LearnRate      float32 `mapstructure:"learnrate" validate:"gt=0"`
	Regularization float32 `mapstructure:"regularization" validate:"gte=0"`
}

type FactorConfig struct {
	Number int `mapstructure:"number" validate:"gt=0"`
}

type InitConfig struct {
	Mean float32 `mapstructure:"mean"`
	Std  float32 `mapstructure:"std" validate:"gte=0"`
}

type LossConfig struct {
	Type string `mapstructure:"type" validate:"oneof=logistic hinge exponential"`
}

type RandomConfig struct {
	Seed int64 `mapstructure:"seed"`
}

type FitConfig struct {
	Jobs    int `mapstructure:"jobs" validate:"gt=0"`
	Verbose int `mapstructure:"verbose" validate:"gt=0"`
}

// keys without defaults which may still be set from the environment
var optionalKeys = []string{
	"rec.item.distribution.parameter",
	"rec.pgm.user.alpha",
	"rec.pgm.item.alpha",
	"rec.pgm.rating.beta",
}

func setDefault(v *viper.Viper) {
	v.SetDefault("rec.pgm.number.users", 10)
	v.SetDefault("rec.pgm.number.items", 10)
	v.SetDefault("rec.pgm.burnin", 0)
	v.SetDefault("rec.pgm.samplelag", 1)
	v.SetDefault("rec.iterator.maximum", 100)
	v.SetDefault("rec.iterator.learnrate", 0.01)
	v.SetDefault("rec.iterator.regularization", 0.01)
	v.SetDefault("rec.factor.number", 10)
	v.SetDefault("rec.init.mean", 0)
	v.SetDefault("rec.init.std", 0.01)
	v.SetDefault("rec.loss.type", "logistic")
	v.SetDefault("rec.random.seed", 0)
	v.SetDefault("rec.fit.jobs", 1)
	v.SetDefault("rec.fit.verbose", 10)
}

// LoadConfig loads configuration from a TOML or YAML file. An empty path loads defaults.
// Environment variables prefixed with GORSE_LAB_ override the file, where dots in keys
// become underscores (GORSE_LAB_REC_PGM_NUMBER_USERS).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("GORSE_LAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range optionalKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Trace(err)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}

// Validate checks ranges of all values.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	return nil
}

// RankingParams returns hyper-parameters of the pairwise ranking model.
func (config *Config) RankingParams() (model.Params, error) {
	if config.Rec.Item.Distribution.Parameter == nil {
		return nil, errors.NotValidf("missing rec.item.distribution.parameter")
	}
	return model.Params{
		model.ItemDistribution: *config.Rec.Item.Distribution.Parameter,
		model.LossType:         config.Rec.Loss.Type,
		model.NEpochs:          config.Rec.Iterator.Maximum,
		model.Lr:               config.Rec.Iterator.LearnRate,
		model.Reg:              config.Rec.Iterator.Regularization,
		model.NFactors:         config.Rec.Factor.Number,
		model.InitMean:         config.Rec.Init.Mean,
		model.InitStdDev:       config.Rec.Init.Std,
		model.RandomState:      config.Rec.Random.Seed,
	}, nil
}

// PGMParams returns hyper-parameters of the co-clustering model. Unset priors are left
// to the model defaults.
func (config *Config) PGMParams() model.Params {
	params := model.Params{
		model.NUserTopics: config.Rec.PGM.Number.Users,
		model.NItemTopics: config.Rec.PGM.Number.Items,
		model.NEpochs:     config.Rec.Iterator.Maximum,
		model.BurnIn:      config.Rec.PGM.BurnIn,
		model.SampleLag:   config.Rec.PGM.SampleLag,
		model.RandomState: config.Rec.Random.Seed,
	}
	if config.Rec.PGM.User.Alpha != nil {
		params[model.UserAlpha] = *config.Rec.PGM.User.Alpha
	}
	if config.Rec.PGM.Item.Alpha != nil {
		params[model.ItemAlpha] = *config.Rec.PGM.Item.Alpha
	}
	if config.Rec.PGM.Rating.Beta != nil {
		params[model.RatingBeta] = *config.Rec.PGM.Rating.Beta
	}
	return params
}

// FitConfig returns options of training runs.
func (config *Config) FitConfig() *model.FitConfig {
	return model.NewFitConfig().
		SetJobs(config.Rec.Fit.Jobs).
		SetVerbose(config.Rec.Fit.Verbose)
}
