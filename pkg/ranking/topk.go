package ranking

import (
	"fmt"

	"github.com/willbeason/table-linking/pkg/candidates"
	"github.com/willbeason/table-linking/pkg/cellindex"
)

// Source is where a row of a top-k candidate dataset came from: a row of the
// candidate side, or, for an injected gold entity, a row of the gold side.
// The unused field is -1.
type Source struct {
	Candidate int
	Gold      int
}

// Sources resolves the remap returned by candidates.Dataset.TopK. Injected
// entities sit at the end of their cell in gold order, so the n-th injected
// position of a cell is the n-th gold row of that cell.
func Sources(idx *cellindex.Index, remap []int, ent *EntDataset) ([]Source, error) {
	if len(remap) != idx.Len() {
		return nil, fmt.Errorf("%w: remap has %d positions for %d candidates",
			candidates.ErrMisaligned, len(remap), idx.Len())
	}

	result := make([]Source, len(remap))
	for cell := range idx.Cells() {
		var gold cellindex.Range
		injected := 0
		for i := cell.Start; i < cell.End; i++ {
			if remap[i] != candidates.Injected {
				result[i] = Source{Candidate: remap[i], Gold: -1}
				continue
			}

			if injected == 0 && ent != nil {
				gold, _ = ent.Index.Cell(cell.TableID, cell.Column, cell.Row)
			}
			if injected >= gold.Len() {
				return nil, &ConsistencyError{
					TableID: cell.TableID, Column: cell.Column, Row: cell.Row,
					Cursor: i, Start: gold.Start + injected,
				}
			}
			result[i] = Source{Candidate: -1, Gold: gold.Start + injected}
			injected++
		}
	}
	return result, nil
}

// Gather lays out the candidate side of a top-k candidate dataset. Rows of
// injected gold entities are always correct.
func (c *CanDataset) Gather(sources []Source, ent *EntDataset) *CanDataset {
	result := &CanDataset{}
	for _, s := range sources {
		if s.Candidate >= 0 {
			result.append(c.ref(s.Candidate))
			result.ID = append(result.ID, c.ID[s.Candidate])
			result.IsCorrect = append(result.IsCorrect, c.IsCorrect[s.Candidate])
			continue
		}
		result.append(ent.ref(s.Gold))
		result.ID = append(result.ID, ent.EntityID[s.Gold])
		result.IsCorrect = append(result.IsCorrect, true)
	}
	return result
}
