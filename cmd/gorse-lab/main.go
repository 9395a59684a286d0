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
	"os/signal"
	"strings"
	"time"

	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/lab/base/log"
	"github.com/gorse-io/lab/base/progress"
	"github.com/gorse-io/lab/config"
	"github.com/gorse-io/lab/dataset"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "gorse-lab",
	Short: "Train pairwise ranking and co-clustering recommenders on rating files.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		return errors.Trace(log.SetLogger(cmd.Flags(), debug))
	},
}

func init() {
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().String("data", "", "path of rating file")
	rootCommand.PersistentFlags().String("sep", "\t", "separator of rating file")
	rootCommand.PersistentFlags().Bool("header", false, "rating file has a header line")
	rootCommand.PersistentFlags().Float32("test-ratio", 0, "ratio of held out ratings")
	rootCommand.AddCommand(fitCommand, tuneCommand, benchCommand)
}

// loadData loads configuration and ratings given by flags.
func loadData(cmd *cobra.Command) (*config.Config, *dataset.Samples, error) {
	configPath, _ := cmd.Flags().GetString("config")
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, errors.Annotatef(err, "failed to load config from %s", configPath)
	}
	dataPath, _ := cmd.Flags().GetString("data")
	if dataPath == "" {
		return nil, nil, errors.NotValidf("empty --data")
	}
	sep, _ := cmd.Flags().GetString("sep")
	header, _ := cmd.Flags().GetBool("header")
	samples, err := dataset.LoadSamples(dataPath, sep, header)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return conf, samples, nil
}

// holdout splits samples by --test-ratio. The held out set is nil unless the ratio is
// positive.
func holdout(cmd *cobra.Command, samples *dataset.Samples, seed int64) (*dataset.Samples, *dataset.Samples) {
	testRatio, _ := cmd.Flags().GetFloat32("test-ratio")
	if testRatio <= 0 {
		return samples, nil
	}
	trainSet, testSet := samples.Split(testRatio, seed)
	testSet = filterHeldOut(trainSet, testSet)
	log.Logger().Info("split samples",
		zap.Int64("seed", seed),
		zap.Int("n_train", trainSet.Count()),
		zap.Int("n_test", testSet.Count()))
	return trainSet, testSet
}

// filterHeldOut drops held out samples whose user, item or rating never appears in the
// train set.
func filterHeldOut(trainSet, testSet *dataset.Samples) *dataset.Samples {
	users := bitset.New(uint(trainSet.CountUsers()))
	items := bitset.New(uint(trainSet.CountItems()))
	for pos := 0; pos < trainSet.Count(); pos++ {
		users.Set(uint(trainSet.Key(trainSet.UserDimension(), pos)))
		items.Set(uint(trainSet.Key(trainSet.ItemDimension(), pos)))
	}
	ratings := mapset.NewSet(trainSet.Scores()...)
	return testSet.Filter(func(pos int) bool {
		return users.Test(uint(testSet.Key(testSet.UserDimension(), pos))) &&
			items.Test(uint(testSet.Key(testSet.ItemDimension(), pos))) &&
			ratings.Contains(testSet.Target(pos))
	})
}

var tracer = progress.NewTracer("gorse-lab")

// trace runs task under a root span named after the command and prints the progress of
// the span tree once the task returns.
func trace(cmd *cobra.Command, total int, task func(ctx context.Context, span *progress.Span) error) error {
	ctx, span := tracer.Start(cmd.Context(), cmd.CommandPath(), total)
	err := task(ctx, span)
	if err != nil {
		span.Fail(err)
	} else {
		span.End()
	}
	if renderErr := renderProgress(tracer.List()); renderErr != nil {
		log.Logger().Error("failed to render progress", zap.Error(renderErr))
	}
	return errors.Trace(err)
}

func renderProgress(roots []progress.Progress) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Task", "Status", "Progress", "Elapsed", "Error")
	var appendRows func(p progress.Progress, depth int) error
	appendRows = func(p progress.Progress, depth int) error {
		finish := p.FinishTime
		if finish.IsZero() {
			finish = time.Now()
		}
		if err := table.Append([]string{
			strings.Repeat("  ", depth) + p.Name,
			string(p.Status),
			fmt.Sprintf("%d/%d", p.Count, p.Total),
			finish.Sub(p.StartTime).String(),
			p.Error,
		}); err != nil {
			return errors.Trace(err)
		}
		for _, child := range p.Children {
			if err := appendRows(child, depth+1); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	}
	for _, root := range roots {
		if err := appendRows(root, 0); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCommand.ExecuteContext(ctx); err != nil {
		log.Logger().Fatal("failed to run command", zap.Error(err))
	}
}
