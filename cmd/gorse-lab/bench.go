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
	"sort"
	"sync"

	"github.com/chewxy/math32"
	"github.com/gorse-io/lab/base/log"
	"github.com/gorse-io/lab/base/progress"
	"github.com/gorse-io/lab/common/parallel"
	"github.com/gorse-io/lab/config"
	"github.com/gorse-io/lab/dataset"
	"github.com/gorse-io/lab/model"
	"github.com/gorse-io/lab/model/pgm"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type benchResult struct {
	Seed       int64
	Score      pgm.Score
	RMSE       float32
	Perplexity float32
}

var benchCommand = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the co-clustering model on repeated holdout splits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, samples, err := loadData(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		if testRatio, _ := cmd.Flags().GetFloat32("test-ratio"); testRatio <= 0 {
			return errors.NotValidf("--test-ratio %v", testRatio)
		}
		runs, _ := cmd.Flags().GetInt("runs")
		var (
			results       sync.Map
			sumRMSE       atomic.Float32
			sumPerplexity atomic.Float32
		)
		bar := progressbar.Default(int64(runs), "bench ldcc")
		err = trace(cmd, runs, func(ctx context.Context, span *progress.Span) error {
			err := parallel.Parallel(ctx, runs, conf.Rec.Fit.Jobs, func(_, run int) error {
				runCtx, runSpan := progress.Start(ctx, fmt.Sprintf("run %d", run), 1)
				result, err := benchRun(runCtx, cmd, conf, samples, conf.Rec.Random.Seed+int64(run))
				if err != nil {
					runSpan.Fail(err)
					return errors.Trace(err)
				}
				runSpan.End()
				span.Add(1)
				results.Store(run, result)
				sumRMSE.Add(result.RMSE)
				sumPerplexity.Add(result.Perplexity)
				return errors.Trace(bar.Add(1))
			})
			if err != nil {
				return errors.Trace(err)
			}
			return errors.Trace(bar.Finish())
		})
		if err != nil {
			return errors.Trace(err)
		}

		var rows []benchResult
		results.Range(func(_, value any) bool {
			rows = append(rows, value.(benchResult))
			return true
		})
		sort.Slice(rows, func(i, j int) bool { return rows[i].Seed < rows[j].Seed })
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Seed", "Epochs", "Converged", "Perplexity", "Test Perplexity", "Test RMSE")
		for _, row := range rows {
			if err = table.Append([]string{
				fmt.Sprint(row.Seed),
				fmt.Sprint(row.Score.Epochs),
				fmt.Sprint(row.Score.Converged),
				fmt.Sprint(row.Score.Perplexity),
				fmt.Sprint(row.Perplexity),
				fmt.Sprint(row.RMSE),
			}); err != nil {
				return errors.Trace(err)
			}
		}
		n := float32(len(rows))
		if err = table.Append([]string{"mean", "", "", "",
			fmt.Sprint(sumPerplexity.Load() / n),
			fmt.Sprint(sumRMSE.Load() / n),
		}); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(table.Render())
	},
}

func init() {
	benchCommand.PersistentFlags().Int("runs", 5, "number of holdout splits")
}

// benchRun fits a model on one holdout split and evaluates it on the held out ratings.
func benchRun(ctx context.Context, cmd *cobra.Command, conf *config.Config, samples *dataset.Samples, seed int64) (benchResult, error) {
	trainSet, testSet := holdout(cmd, samples, seed)
	params := conf.PGMParams()
	params[model.RandomState] = seed
	m := pgm.NewLDCC(params)
	score, err := m.Fit(ctx, trainSet, model.NewFitConfig().SetVerbose(conf.Rec.Fit.Verbose))
	if err != nil {
		return benchResult{}, errors.Trace(err)
	}
	rmse, err := evaluateRMSE(m, testSet)
	if err != nil {
		return benchResult{}, errors.Trace(err)
	}
	perplexity, err := m.Perplexity(testSet)
	if err != nil {
		return benchResult{}, errors.Trace(err)
	}
	log.Logger().Info("bench ldcc",
		zap.Int64("seed", seed),
		zap.Float32("rmse", rmse),
		zap.Float32("perplexity", perplexity))
	return benchResult{Seed: seed, Score: score, RMSE: rmse, Perplexity: perplexity}, nil
}

// evaluateRMSE computes the root mean squared error of expected ratings.
func evaluateRMSE(m *pgm.LDCC, testSet *dataset.Samples) (float32, error) {
	if testSet.Count() == 0 {
		return 0, errors.NotValidf("empty held out set")
	}
	var sum float32
	for pos := 0; pos < testSet.Count(); pos++ {
		diff := m.Predict(testSet.Key(testSet.UserDimension(), pos), testSet.Key(testSet.ItemDimension(), pos)) - testSet.Target(pos)
		sum += diff * diff
	}
	return math32.Sqrt(sum / float32(testSet.Count())), nil
}
