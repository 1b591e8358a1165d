package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/willbeason/table-linking/pkg/tables"
)

// Write stores every artifact of r as parquet files in dir, creating it if
// needed.
func (r *Result) Write(dir string) error {
	err := os.MkdirAll(dir, os.ModePerm)
	if err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	path := func(name string) string {
		return filepath.Join(dir, name+tables.ParquetExt)
	}

	err = tables.WriteCandidates(dir, r.RunID, r.Candidates)
	if err != nil {
		return err
	}
	err = tables.WriteEnt(path(tables.RankingEntName), r.RunID, r.Ent)
	if err != nil {
		return err
	}
	err = tables.WriteCan(path(tables.RankingCanName), r.RunID, r.Can)
	if err != nil {
		return err
	}
	err = tables.WriteTypes(path(tables.RankingTypesName), r.RunID, r.Types)
	if err != nil {
		return err
	}
	err = tables.WriteFeatures(path(tables.FeaturesEntName), r.RunID, r.Ent, r.EntFeatures)
	if err != nil {
		return fmt.Errorf("gold entities: %w", err)
	}
	err = tables.WriteFeatures(path(tables.FeaturesCanName), r.RunID, r.Can, r.CanFeatures)
	if err != nil {
		return fmt.Errorf("candidates: %w", err)
	}
	return nil
}
