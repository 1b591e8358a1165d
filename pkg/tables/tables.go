// Package tables declares the Arrow schemas of the artifacts a linking run
// produces, and reads and writes them as Parquet.
package tables

import (
	"github.com/apache/arrow/go/v18/arrow"
	"github.com/willbeason/table-linking/pkg/features"
)

const (
	ParquetExt = ".parquet"

	CandidatesName   = "candidates"
	CellIndexName    = "cell_index"
	RankingEntName   = "ranking_ent"
	RankingCanName   = "ranking_can"
	RankingTypesName = "ranking_types"
	FeaturesEntName  = "features_ent"
	FeaturesCanName  = "features_can"
)

// Field names shared by several schemas.
const (
	TableIDFieldName    = "table_id"
	TableIndexFieldName = "table_index"
	ColumnFieldName     = "column"
	RowFieldName        = "row"
	StartFieldName      = "start"
	EndFieldName        = "end"
)

const (
	tableIndexComment = "The position of the cell's table in the batch"
	cellComment       = "The text of the cell"
	cellIdComment     = "A number for the cell, unique within the run, in index layout order"
	colIndexComment   = "The column of the cell within its table"
	rowIndexComment   = "The row of the cell within its table"
)

func dictionary() *arrow.DictionaryType {
	return &arrow.DictionaryType{
		IndexType: arrow.PrimitiveTypes.Uint8,
		ValueType: arrow.BinaryTypes.String,
		Ordered:   false,
	}
}

// Candidates holds the candidate arrays of a dataset. Row i is element i of
// every array; the ranges of each cell are in CellIndex.
var Candidates = arrow.NewSchema([]arrow.Field{
	{Name: "id",
		Type: arrow.BinaryTypes.String,
		Metadata: NewMetadataBuilder().Add(
			comment, "The knowledge base identifier of the candidate entity",
		).Build(),
	},
	{Name: "label",
		Type: arrow.BinaryTypes.String,
		Metadata: NewMetadataBuilder().Add(
			comment, "The main label of the entity",
		).Build(),
	},
	{Name: "description",
		Type: arrow.BinaryTypes.String,
		Metadata: NewMetadataBuilder().Add(
			comment, "The description of the entity",
		).Build(),
		Nullable: true,
	},
	{Name: "aliases",
		Type: arrow.ListOf(arrow.BinaryTypes.String),
		Metadata: NewMetadataBuilder().Add(
			comment, "Alternative labels of the entity",
		).Build(),
	},
	{Name: "popularity",
		Type: arrow.PrimitiveTypes.Float64,
		Metadata: NewMetadataBuilder().Add(
			comment, "The prior popularity of the entity",
		).Build(),
	},
	{Name: "score",
		Type: arrow.PrimitiveTypes.Float64,
		Metadata: NewMetadataBuilder().Add(
			comment, "The retrieval or ranking score of the candidate for its cell",
		).Build(),
	},
	{Name: "provenance",
		Type: dictionary(),
		Metadata: NewMetadataBuilder().Add(
			comment, "Where the candidate came from, such as a search backend or the oracle",
		).Build(),
	},
}, NewMetadataBuilder().Add(
	comment, "Candidate entities proposed for table cells",
).BuildReference())

// CellIndex flattens a cell index to one row per cell, in layout order.
var CellIndex = arrow.NewSchema([]arrow.Field{
	{Name: TableIDFieldName,
		Type: arrow.BinaryTypes.String,
		Metadata: NewMetadataBuilder().Add(
			comment, "The identifier of the cell's table",
		).Build(),
	},
	{Name: ColumnFieldName,
		Type: arrow.PrimitiveTypes.Uint32,
		Metadata: NewMetadataBuilder().Add(
			comment, colIndexComment,
		).Build(),
	},
	{Name: RowFieldName,
		Type: arrow.PrimitiveTypes.Uint32,
		Metadata: NewMetadataBuilder().Add(
			comment, rowIndexComment,
		).Build(),
	},
	{Name: StartFieldName,
		Type: arrow.PrimitiveTypes.Uint32,
		Metadata: NewMetadataBuilder().Add(
			comment, "The first candidate row of the cell",
		).Build(),
	},
	{Name: EndFieldName,
		Type: arrow.PrimitiveTypes.Uint32,
		Metadata: NewMetadataBuilder().Add(
			comment, "One past the last candidate row of the cell",
		).Build(),
	},
}, NewMetadataBuilder().Add(
	comment, "The candidate range of every cell",
).BuildReference())

func cellFields() []arrow.Field {
	return []arrow.Field{
		{Name: "cell",
			Type: arrow.BinaryTypes.String,
			Metadata: NewMetadataBuilder().Add(
				comment, cellComment,
			).Build(),
		},
		{Name: "cell_id",
			Type: arrow.PrimitiveTypes.Uint32,
			Metadata: NewMetadataBuilder().Add(
				comment, cellIdComment,
			).Build(),
		},
		{Name: TableIndexFieldName,
			Type: arrow.PrimitiveTypes.Uint32,
			Metadata: NewMetadataBuilder().Add(
				comment, tableIndexComment,
			).Build(),
		},
		{Name: "row_index",
			Type: arrow.PrimitiveTypes.Uint32,
			Metadata: NewMetadataBuilder().Add(
				comment, rowIndexComment,
			).Build(),
		},
		{Name: "col_index",
			Type: arrow.PrimitiveTypes.Uint32,
			Metadata: NewMetadataBuilder().Add(
				comment, colIndexComment,
			).Build(),
		},
	}
}

// RankingEnt holds one row per gold entity of every linked cell.
var RankingEnt = arrow.NewSchema(append(cellFields(),
	arrow.Field{Name: "entity_id",
		Type: arrow.BinaryTypes.String,
		Metadata: NewMetadataBuilder().Add(
			comment, "The knowledge base identifier of the gold entity",
		).Build(),
	},
	arrow.Field{Name: "entity_label",
		Type: arrow.BinaryTypes.String,
		Metadata: NewMetadataBuilder().Add(
			comment, "The main label of the gold entity",
		).Build(),
	},
	arrow.Field{Name: "entity_description",
		Type: arrow.BinaryTypes.String,
		Metadata: NewMetadataBuilder().Add(
			comment, "The description of the gold entity",
		).Build(),
		Nullable: true,
	},
	arrow.Field{Name: "entity_aliases",
		Type: arrow.ListOf(arrow.BinaryTypes.String),
		Metadata: NewMetadataBuilder().Add(
			comment, "Alternative labels of the gold entity",
		).Build(),
	},
	arrow.Field{Name: "entity_popularity",
		Type: arrow.PrimitiveTypes.Float64,
		Metadata: NewMetadataBuilder().Add(
			comment, "The prior popularity of the gold entity",
		).Build(),
	},
), NewMetadataBuilder().Add(
	comment, "Gold entities of the cells of a candidate ranking dataset",
).BuildReference())

// RankingCan holds one row per candidate, in candidate dataset order.
var RankingCan = arrow.NewSchema(append(cellFields(),
	arrow.Field{Name: "id",
		Type: arrow.BinaryTypes.String,
		Metadata: NewMetadataBuilder().Add(
			comment, "The knowledge base identifier of the candidate entity",
		).Build(),
	},
	arrow.Field{Name: "is_correct",
		Type: arrow.FixedWidthTypes.Boolean,
		Metadata: NewMetadataBuilder().Add(
			comment, "Whether the candidate is among the gold entities of its cell",
		).Build(),
	},
), NewMetadataBuilder().Add(
	comment, "Candidates of a candidate ranking dataset",
).BuildReference())

// RankingTypes holds the types of every candidate, aligned with RankingCan.
var RankingTypes = arrow.NewSchema(append(cellFields(),
	arrow.Field{Name: "id",
		Type: arrow.BinaryTypes.String,
		Metadata: NewMetadataBuilder().Add(
			comment, "The knowledge base identifier of the candidate entity",
		).Build(),
	},
	arrow.Field{Name: "types",
		Type: arrow.ListOf(arrow.BinaryTypes.String),
		Metadata: NewMetadataBuilder().Add(
			comment, "The types of the candidate, extended by the run's types mode",
		).Build(),
	},
), NewMetadataBuilder().Add(
	comment, "Candidate types of a candidate ranking dataset",
).BuildReference())

// Features holds one feature vector per ranking row, preceded by the table
// index of the row's cell.
var Features = featuresSchema()

func featuresSchema() *arrow.Schema {
	fields := []arrow.Field{
		{Name: TableIndexFieldName,
			Type: arrow.PrimitiveTypes.Uint32,
			Metadata: NewMetadataBuilder().Add(
				comment, tableIndexComment,
			).Build(),
		},
	}
	for _, name := range features.Names {
		fields = append(fields, arrow.Field{
			Name: name,
			Type: arrow.PrimitiveTypes.Float64,
			Metadata: NewMetadataBuilder().Add(
				comment, "Similarity feature "+name,
			).Build(),
		})
	}
	return arrow.NewSchema(fields, NewMetadataBuilder().Add(
		comment, "Similarity features between cell text and entity",
	).BuildReference())
}
