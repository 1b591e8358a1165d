package tables

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/google/uuid"
	"github.com/willbeason/table-linking/pkg/candidates"
	"github.com/willbeason/table-linking/pkg/cellindex"
	"github.com/willbeason/table-linking/pkg/features"
	"github.com/willbeason/table-linking/pkg/ranking"
	"gonum.org/v1/gonum/mat"
)

// Rows are the rows of either side of a ranking dataset.
type Rows interface {
	Len() int
	Ref(i int) ranking.CellRef
}

// WriteCandidates writes the arrays of d and its flattened index to dir.
func WriteCandidates(dir string, runID uuid.UUID, d *candidates.Dataset) error {
	path := filepath.Join(dir, CandidatesName+ParquetExt)
	err := writeRecord(path, WithRunID(Candidates, runID), func(b *array.RecordBuilder) error {
		fields := b.Fields()
		idField := fields[0].(*array.StringBuilder)
		labelField := fields[1].(*array.StringBuilder)
		descriptionField := fields[2].(*array.StringBuilder)
		aliasesField := fields[3].(*array.ListBuilder)
		popularityField := fields[4].(*array.Float64Builder)
		scoreField := fields[5].(*array.Float64Builder)
		provenanceField := fields[6].(*array.BinaryDictionaryBuilder)

		for i := range d.Len() {
			idField.Append(d.ID[i])
			labelField.Append(d.Label[i])
			appendNullable(descriptionField, d.Description[i])
			appendList(aliasesField, d.Aliases[i])
			popularityField.Append(d.Popularity[i])
			scoreField.Append(d.Score[i])
			err := provenanceField.AppendString(d.Provenance[i])
			if err != nil {
				return fmt.Errorf("appending provenance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing candidates: %w", err)
	}

	return WriteCellIndex(filepath.Join(dir, CellIndexName+ParquetExt), runID, d.Index)
}

// WriteCellIndex writes one row per cell of idx, in layout order.
func WriteCellIndex(path string, runID uuid.UUID, idx *cellindex.Index) error {
	err := writeRecord(path, WithRunID(CellIndex, runID), func(b *array.RecordBuilder) error {
		fields := b.Fields()
		tableIdField := fields[0].(*array.StringBuilder)
		columnField := fields[1].(*array.Uint32Builder)
		rowField := fields[2].(*array.Uint32Builder)
		startField := fields[3].(*array.Uint32Builder)
		endField := fields[4].(*array.Uint32Builder)

		for cell := range idx.Cells() {
			tableIdField.Append(cell.TableID)
			columnField.Append(uint32(cell.Column))
			rowField.Append(uint32(cell.Row))
			startField.Append(uint32(cell.Start))
			endField.Append(uint32(cell.End))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing cell index: %w", err)
	}
	return nil
}

// appendCell appends the cell coordinates of a ranking row to the leading
// fields of b.
func appendCell(fields []array.Builder, ref ranking.CellRef) {
	fields[0].(*array.StringBuilder).Append(ref.Text)
	fields[1].(*array.Uint32Builder).Append(uint32(ref.CellID))
	fields[2].(*array.Uint32Builder).Append(uint32(ref.TableIndex))
	fields[3].(*array.Uint32Builder).Append(uint32(ref.RowIndex))
	fields[4].(*array.Uint32Builder).Append(uint32(ref.ColIndex))
}

// WriteEnt writes the gold side of a ranking dataset.
func WriteEnt(path string, runID uuid.UUID, e *ranking.EntDataset) error {
	err := writeRecord(path, WithRunID(RankingEnt, runID), func(b *array.RecordBuilder) error {
		fields := b.Fields()
		entityIdField := fields[5].(*array.StringBuilder)
		entityLabelField := fields[6].(*array.StringBuilder)
		entityDescriptionField := fields[7].(*array.StringBuilder)
		entityAliasesField := fields[8].(*array.ListBuilder)
		entityPopularityField := fields[9].(*array.Float64Builder)

		for i := range e.Len() {
			appendCell(fields, e.Ref(i))
			entity := e.Entity(i)
			entityIdField.Append(entity.ID)
			entityLabelField.Append(entity.Label)
			appendNullable(entityDescriptionField, entity.Description)
			appendList(entityAliasesField, entity.Aliases)
			entityPopularityField.Append(entity.Popularity)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing gold entities: %w", err)
	}
	return nil
}

// WriteCan writes the candidate side of a ranking dataset.
func WriteCan(path string, runID uuid.UUID, c *ranking.CanDataset) error {
	err := writeRecord(path, WithRunID(RankingCan, runID), func(b *array.RecordBuilder) error {
		fields := b.Fields()
		idField := fields[5].(*array.StringBuilder)
		isCorrectField := fields[6].(*array.BooleanBuilder)

		for i := range c.Len() {
			appendCell(fields, c.Ref(i))
			idField.Append(c.ID[i])
			isCorrectField.Append(c.IsCorrect[i])
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing ranking candidates: %w", err)
	}
	return nil
}

// WriteTypes writes the candidate types of a ranking dataset.
func WriteTypes(path string, runID uuid.UUID, t *ranking.TypesDataset) error {
	err := writeRecord(path, WithRunID(RankingTypes, runID), func(b *array.RecordBuilder) error {
		fields := b.Fields()
		idField := fields[5].(*array.StringBuilder)
		typesField := fields[6].(*array.ListBuilder)

		for i := range t.Len() {
			appendCell(fields, t.Ref(i))
			idField.Append(t.ID[i])
			appendList(typesField, t.Types[i])
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing candidate types: %w", err)
	}
	return nil
}

// WriteFeatures writes one feature vector per row of either ranking side.
// Row i of m belongs to row i of rows.
func WriteFeatures(path string, runID uuid.UUID, rows Rows, m mat.Matrix) error {
	r, c := m.Dims()
	if r != rows.Len() || (r > 0 && c != features.NumFeatures) {
		return fmt.Errorf("%w: %dx%d matrix for %d rows of %d features", ErrShape, r, c, rows.Len(), features.NumFeatures)
	}

	err := writeRecord(path, WithRunID(Features, runID), func(b *array.RecordBuilder) error {
		fields := b.Fields()
		tableIndexField := fields[0].(*array.Uint32Builder)
		for i := range r {
			tableIndexField.Append(uint32(rows.Ref(i).TableIndex))
			for j := range features.NumFeatures {
				fields[j+1].(*array.Float64Builder).Append(m.At(i, j))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing features: %w", err)
	}
	return nil
}

// ReadCandidates reads a dataset written by WriteCandidates from dir, and the
// id of the run that wrote it. Tables and columns without cells are not
// recorded in the cell index and do not survive the round trip.
func ReadCandidates(ctx context.Context, dir string) (*candidates.Dataset, uuid.UUID, error) {
	var columns candidates.Columns
	schema, err := readRecords(ctx, filepath.Join(dir, CandidatesName+ParquetExt), func(record arrow.Record) error {
		return appendCandidates(&columns, record)
	})
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("reading candidates: %w", err)
	}
	runID, err := RunID(schema)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("reading candidates: %w", err)
	}

	idx, err := ReadCellIndex(ctx, filepath.Join(dir, CellIndexName+ParquetExt))
	if err != nil {
		return nil, uuid.Nil, err
	}

	d := &candidates.Dataset{Columns: columns, Index: idx}
	err = d.Validate()
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("reading candidates: %w", err)
	}
	return d, runID, nil
}

func appendCandidates(columns *candidates.Columns, record arrow.Record) error {
	id, err := stringColumn(record, "id")
	if err != nil {
		return err
	}
	label, err := stringColumn(record, "label")
	if err != nil {
		return err
	}
	description, err := stringColumn(record, "description")
	if err != nil {
		return err
	}
	aliases, err := listColumn(record, "aliases")
	if err != nil {
		return err
	}
	popularity, err := column[*array.Float64](record, "popularity")
	if err != nil {
		return err
	}
	score, err := column[*array.Float64](record, "score")
	if err != nil {
		return err
	}
	provenance, err := stringColumn(record, "provenance")
	if err != nil {
		return err
	}

	for i := range int(record.NumRows()) {
		columns.ID = append(columns.ID, id(i))
		columns.Label = append(columns.Label, label(i))
		columns.Description = append(columns.Description, description(i))
		columns.Aliases = append(columns.Aliases, aliases(i))
		columns.Popularity = append(columns.Popularity, popularity.Value(i))
		columns.Score = append(columns.Score, score.Value(i))
		columns.Provenance = append(columns.Provenance, provenance(i))
	}
	return nil
}

// ReadCellIndex rebuilds an index from the cells written by WriteCellIndex.
func ReadCellIndex(ctx context.Context, path string) (*cellindex.Index, error) {
	var cells []cellindex.Cell
	_, err := readRecords(ctx, path, func(record arrow.Record) error {
		tableId, err := stringColumn(record, TableIDFieldName)
		if err != nil {
			return err
		}
		var uints [4]*array.Uint32
		for i, name := range []string{ColumnFieldName, RowFieldName, StartFieldName, EndFieldName} {
			uints[i], err = column[*array.Uint32](record, name)
			if err != nil {
				return err
			}
		}

		for i := range int(record.NumRows()) {
			cells = append(cells, cellindex.Cell{
				TableID: tableId(i),
				Column:  int(uints[0].Value(i)),
				Row:     int(uints[1].Value(i)),
				Range:   cellindex.Range{Start: int(uints[2].Value(i)), End: int(uints[3].Value(i))},
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading cell index: %w", err)
	}

	idx, err := cellindex.FromCells(cells)
	if err != nil {
		return nil, fmt.Errorf("rebuilding cell index: %w", err)
	}
	return idx, nil
}
