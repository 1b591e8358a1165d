package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/willbeason/table-linking/pkg/tables"
)

const (
	FlagPartitions = "partitions"
	FlagSeed       = "seed"
)

func init() {
	cmd.Flags().Float64Slice(FlagPartitions, []float64{0.01, 0.05}, "dataset partitions")
	cmd.Flags().Int64(FlagSeed, 0, "random seed")
}

func main() {
	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cmd = cobra.Command{
	Use:     "subsample IN_DIR OUT_DIR",
	Short:   "subsamples a candidate ranking dataset by table",
	Args:    cobra.ExactArgs(2),
	Version: "0.1.0",
	RunE:    runE,
}

// partitioned lists the artifacts split by table. The candidates and the
// cell index are addressed by position and are not split.
var partitioned = []string{
	tables.RankingEntName,
	tables.RankingCanName,
	tables.RankingTypesName,
	tables.FeaturesEntName,
	tables.FeaturesCanName,
}

func runE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	inPath := args[0]
	outDir := args[1]

	err := os.MkdirAll(outDir, os.ModePerm)
	if err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	partitions, err := cmd.Flags().GetFloat64Slice(FlagPartitions)
	if err != nil {
		return fmt.Errorf("getting partitions: %w", err)
	}

	thresholds := make([]float64, len(partitions))
	sum := 0.0
	for i, partition := range partitions {
		sum += partition
		thresholds[i] = sum
	}
	if sum > 1 {
		return fmt.Errorf("partitions sum to %f, more than 1", sum)
	}

	seed, err := getSeed(cmd)
	if err != nil {
		return fmt.Errorf("getting seed: %w", err)
	}

	inCan := filepath.Join(inPath, tables.RankingCanName+tables.ParquetExt)
	tableIndices, err := tables.TableIndices(ctx, inCan)
	if err != nil {
		return fmt.Errorf("getting table indices: %w", err)
	}
	tablePartitions := getPartitions(seed, tableIndices, thresholds)

	counts := make([]int, len(thresholds))
	for _, partition := range tablePartitions {
		counts[partition]++
	}
	for i, count := range counts {
		fmt.Printf("partition %d: %d tables\n", i, count)
	}

	assign := func(tableIndex uint32) int {
		partition, found := tablePartitions[tableIndex]
		if !found {
			return -1
		}
		return partition
	}

	for _, name := range partitioned {
		in := filepath.Join(inPath, name+tables.ParquetExt)
		outs := make([]string, len(thresholds))
		for i := range outs {
			outs[i] = filepath.Join(outDir, fmt.Sprintf("%s_%d%s", name, i, tables.ParquetExt))
		}

		err = tables.Partition(ctx, in, outs, assign)
		if err != nil {
			return fmt.Errorf("partitioning %s: %w", name, err)
		}
	}

	return nil
}

// getPartitions draws each table into the first partition whose cumulative
// threshold exceeds a uniform random value. Tables drawn past the last
// threshold are left out.
func getPartitions(seed int64, tableIndices []uint32, thresholds []float64) map[uint32]int {
	rng := rand.New(rand.NewSource(seed))
	result := make(map[uint32]int)

	for _, id := range tableIndices {
		randValue := rng.Float64()
		for j, threshold := range thresholds {
			if randValue < threshold {
				result[id] = j
				break
			}
		}
	}
	return result
}

func getSeed(cmd *cobra.Command) (int64, error) {
	// Check if the user set the seed manually.
	seedSet := false
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Name == FlagSeed {
			seedSet = true
		}
	})

	if seedSet {
		seed, err := cmd.Flags().GetInt64(FlagSeed)
		if err != nil {
			return 0, err
		}
		return seed, nil
	}
	return time.Now().UnixNano(), nil
}
