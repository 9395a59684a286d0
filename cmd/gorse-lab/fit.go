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

	"github.com/gorse-io/lab/base/log"
	"github.com/gorse-io/lab/base/progress"
	"github.com/gorse-io/lab/model/pgm"
	"github.com/gorse-io/lab/model/ranking"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fitCommand = &cobra.Command{
	Use:   "fit",
	Short: "Fit a model.",
}

var fitRankingCommand = &cobra.Command{
	Use:   "ranking",
	Short: "Fit the pairwise ranking model with popularity-biased negative sampling.",
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
		start := time.Now()
		m := ranking.NewLambdaFM(params)
		var score ranking.Score
		if err = trace(cmd, 1, func(ctx context.Context, _ *progress.Span) (err error) {
			score, err = m.Fit(ctx, trainSet, conf.FitConfig())
			return
		}); err != nil {
			return errors.Trace(err)
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Model", "Loss", "Elapsed")
		if err = table.Append([]string{"lambdafm", fmt.Sprint(score.Loss), time.Since(start).String()}); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(table.Render())
	},
}

var fitPGMCommand = &cobra.Command{
	Use:   "pgm",
	Short: "Fit the co-clustering model by collapsed Gibbs sampling.",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, samples, err := loadData(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		trainSet, testSet := holdout(cmd, samples, conf.Rec.Random.Seed)
		start := time.Now()
		m := pgm.NewLDCC(conf.PGMParams())
		var score pgm.Score
		if err = trace(cmd, 1, func(ctx context.Context, _ *progress.Span) (err error) {
			score, err = m.Fit(ctx, trainSet, conf.FitConfig())
			return
		}); err != nil {
			return errors.Trace(err)
		}
		elapsed := time.Since(start)
		testPerplexity := "-"
		if testSet != nil {
			if perplexity, err := m.Perplexity(testSet); err != nil {
				log.Logger().Warn("failed to evaluate held out ratings", zap.Error(err))
			} else {
				testPerplexity = fmt.Sprint(perplexity)
			}
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Model", "Epochs", "Converged", "Perplexity", "Test Perplexity", "Elapsed")
		if err = table.Append([]string{
			"ldcc",
			fmt.Sprint(score.Epochs),
			fmt.Sprint(score.Converged),
			fmt.Sprint(score.Perplexity),
			testPerplexity,
			elapsed.String(),
		}); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(table.Render())
	},
}

func init() {
	fitCommand.AddCommand(fitRankingCommand, fitPGMCommand)
}
