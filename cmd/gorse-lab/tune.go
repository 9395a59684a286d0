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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/lab/base/log"
	"github.com/gorse-io/lab/base/progress"
	"github.com/gorse-io/lab/model"
	"github.com/gorse-io/lab/model/pgm"
	"github.com/gorse-io/lab/model/ranking"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tuneCommand = &cobra.Command{
	Use:   "tune",
	Short: "Tune hyper-parameters by TPE search.",
}

var tuneRankingCommand = &cobra.Command{
	Use:   "ranking",
	Short: "Tune the pairwise ranking model by training loss.",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, samples, err := loadData(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		trainSet, _ := holdout(cmd, samples, conf.Rec.Random.Seed)
		params, err := conf.RankingParams()
		if err != nil {
			return errors.Trace(err)
		}
		search := ranking.NewModelSearch(params, trainSet, conf.FitConfig())
		start := time.Now()
		if err = optimize(cmd, "lambdafm", search.Objective); err != nil {
			return errors.Trace(err)
		}
		bestParams, score := search.Result()
		return renderResult("lambdafm", bestParams, "Loss", score.Loss, time.Since(start))
	},
}

var tunePGMCommand = &cobra.Command{
	Use:   "pgm",
	Short: "Tune the co-clustering model by perplexity.",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, samples, err := loadData(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		trainSet, testSet := holdout(cmd, samples, conf.Rec.Random.Seed)
		search := pgm.NewModelSearch(conf.PGMParams(), trainSet, testSet, conf.FitConfig())
		start := time.Now()
		if err = optimize(cmd, "ldcc", search.Objective); err != nil {
			return errors.Trace(err)
		}
		bestParams, perplexity := search.Result()
		return renderResult("ldcc", bestParams, "Perplexity", perplexity, time.Since(start))
	},
}

func init() {
	tuneCommand.PersistentFlags().Int("trials", 10, "number of trials")
	tuneCommand.PersistentFlags().Bool("quiet", false, "only log warnings and errors during trials")
	tuneCommand.AddCommand(tuneRankingCommand, tunePGMCommand)
}

func optimize(cmd *cobra.Command, name string, objective goptuna.FuncObjective) error {
	trials, _ := cmd.Flags().GetInt("trials")
	study, err := goptuna.CreateStudy(name,
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	if err != nil {
		return errors.Trace(err)
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		log.SetLevel(zap.WarnLevel)
	}
	return trace(cmd, trials, func(_ context.Context, span *progress.Span) error {
		return errors.Trace(study.Optimize(func(trial goptuna.Trial) (float64, error) {
			defer span.Add(1)
			return objective(trial)
		}, trials))
	})
}

func renderResult(name string, params model.Params, metric string, score float32, elapsed time.Duration) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Model", metric, "Params", "Elapsed")
	if err := table.Append([]string{name, fmt.Sprint(score), fmt.Sprint(params), elapsed.String()}); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(table.Render())
}
