package tables

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
)

// BatchSize is the number of rows read per record.
const BatchSize = 1 << 20

var (
	ErrSchema = errors.New("unexpected parquet schema")
	ErrShape  = errors.New("feature matrix does not match rows")
)

// NewWriter creates path and returns a gzip-compressed parquet writer for
// schema. Closing the writer closes the file.
func NewWriter(path string, schema *arrow.Schema) (*pqarrow.FileWriter, error) {
	outFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %q: %w", path, err)
	}
	writer, err := pqarrow.NewFileWriter(
		schema,
		outFile,
		parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Gzip),
			parquet.WithCompressionLevel(gzip.BestCompression)),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()),
	)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating writer for %q: %w", path, err), outFile.Close())
	}
	return writer, nil
}

// writeRecord writes the single record that fill appends to a new parquet
// file at path.
func writeRecord(path string, schema *arrow.Schema, fill func(b *array.RecordBuilder) error) error {
	recordBuilder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer recordBuilder.Release()

	err := fill(recordBuilder)
	if err != nil {
		return err
	}
	return writeBuilt(path, schema, recordBuilder)
}

// readRecords calls fn on every record of the parquet file at path and
// returns the file's schema. Records are only valid during fn.
func readRecords(ctx context.Context, path string, fn func(record arrow.Record) error) (*arrow.Schema, error) {
	schema, recordReader, closeFn, err := openRecords(ctx, path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	err = eachRecord(recordReader, fn)
	if err != nil {
		return nil, err
	}
	return schema, nil
}

// openRecords opens the parquet file at path for reading whole records.
// Call the returned function when done.
func openRecords(ctx context.Context, path string) (*arrow.Schema, pqarrow.RecordReader, func(), error) {
	inFileReader, err := file.OpenParquetFile(path, true)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening parquet file %q: %w", path, err)
	}

	inReader, err := pqarrow.NewFileReader(inFileReader,
		pqarrow.ArrowReadProperties{Parallel: true, BatchSize: BatchSize},
		memory.NewGoAllocator(),
	)
	if err != nil {
		_ = inFileReader.Close()
		return nil, nil, nil, fmt.Errorf("creating pqarrow FileReader: %w", err)
	}

	schema, err := inReader.Schema()
	if err != nil {
		_ = inFileReader.Close()
		return nil, nil, nil, fmt.Errorf("getting schema: %w", err)
	}

	recordReader, err := inReader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		_ = inFileReader.Close()
		return nil, nil, nil, fmt.Errorf("getting record reader: %w", err)
	}

	return schema, recordReader, func() {
		recordReader.Release()
		_ = inFileReader.Close()
	}, nil
}

func eachRecord(recordReader pqarrow.RecordReader, fn func(record arrow.Record) error) error {
	var record arrow.Record
	var err error
	for record, err = recordReader.Read(); err == nil; record, err = recordReader.Read() {
		err = fn(record)
		if err != nil {
			return err
		}
	}
	if !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading records: %w", err)
	}
	return nil
}

// column returns the named column of record as a T.
func column[T arrow.Array](record arrow.Record, name string) (T, error) {
	var zero T
	indices := record.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return zero, fmt.Errorf("%w: no field %q", ErrSchema, name)
	}
	c, ok := record.Column(indices[0]).(T)
	if !ok {
		return zero, fmt.Errorf("%w: expected %s to be of type %T, got %T", ErrSchema, name, zero, record.Column(indices[0]))
	}
	return c, nil
}

// stringColumn reads a plain or dictionary-encoded string column. Nulls read
// as empty strings.
func stringColumn(record arrow.Record, name string) (func(i int) string, error) {
	indices := record.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: no field %q", ErrSchema, name)
	}

	switch c := record.Column(indices[0]).(type) {
	case *array.String:
		return func(i int) string {
			if c.IsNull(i) {
				return ""
			}
			return c.Value(i)
		}, nil
	case *array.Dictionary:
		dict, ok := c.Dictionary().(*array.String)
		if !ok {
			return nil, fmt.Errorf("%w: expected %s dictionary of strings, got %T", ErrSchema, name, c.Dictionary())
		}
		return func(i int) string {
			if c.IsNull(i) {
				return ""
			}
			return dict.Value(c.GetValueIndex(i))
		}, nil
	default:
		return nil, fmt.Errorf("%w: expected %s to be a string column, got %T", ErrSchema, name, c)
	}
}

// listColumn reads a list of strings column. Empty lists read as nil.
func listColumn(record arrow.Record, name string) (func(i int) []string, error) {
	c, err := column[*array.List](record, name)
	if err != nil {
		return nil, err
	}
	values, ok := c.ListValues().(*array.String)
	if !ok {
		return nil, fmt.Errorf("%w: expected %s to hold strings, got %T", ErrSchema, name, c.ListValues())
	}
	return func(i int) []string {
		start, end := c.ValueOffsets(i)
		if start == end {
			return nil
		}
		result := make([]string, 0, end-start)
		for j := start; j < end; j++ {
			result = append(result, values.Value(int(j)))
		}
		return result
	}, nil
}

func appendList(b *array.ListBuilder, values []string) {
	b.Append(true)
	valueBuilder := b.ValueBuilder().(*array.StringBuilder)
	for _, v := range values {
		valueBuilder.Append(v)
	}
}

func appendNullable(b *array.StringBuilder, v string) {
	if v == "" {
		b.AppendNull()
	} else {
		b.Append(v)
	}
}
