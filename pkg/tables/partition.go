package tables

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
)

// TableIndices returns the distinct table indices of the parquet file at path
// in increasing order.
func TableIndices(ctx context.Context, path string) ([]uint32, error) {
	seen := make(map[uint32]struct{})
	_, err := readRecords(ctx, path, func(record arrow.Record) error {
		c, err := column[*array.Uint32](record, TableIndexFieldName)
		if err != nil {
			return err
		}
		for _, v := range c.Uint32Values() {
			seen[v] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// Partition copies each row of the parquet file at inPath to outPaths[k],
// where k is assign of the row's table index. Rows for which assign returns
// a negative number are dropped. Every output keeps the input's schema.
func Partition(ctx context.Context, inPath string, outPaths []string, assign func(tableIndex uint32) int) error {
	schema, recordReader, closeFn, err := openRecords(ctx, inPath)
	if err != nil {
		return err
	}
	defer closeFn()

	allocator := memory.NewGoAllocator()
	recordBuilders := make([]*array.RecordBuilder, len(outPaths))
	for i := range outPaths {
		recordBuilders[i] = array.NewRecordBuilder(allocator, schema)
		defer recordBuilders[i].Release()
	}

	err = eachRecord(recordReader, func(record arrow.Record) error {
		idColumn, err := column[*array.Uint32](record, TableIndexFieldName)
		if err != nil {
			return err
		}

		for i, id := range idColumn.Uint32Values() {
			partitionNum := assign(id)
			if partitionNum < 0 {
				continue
			}
			if partitionNum >= len(recordBuilders) {
				return fmt.Errorf("table %d assigned to partition %d of %d", id, partitionNum, len(recordBuilders))
			}

			recordBuilder := recordBuilders[partitionNum]
			for j := range recordBuilder.Schema().Fields() {
				err = copyValue(recordBuilder.Field(j), record.Column(j), i)
				if err != nil {
					return fmt.Errorf("copying %s: %w", schema.Field(j).Name, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("partitioning %q: %w", inPath, err)
	}

	for i, outPath := range outPaths {
		err = writeBuilt(outPath, schema, recordBuilders[i])
		if err != nil {
			return err
		}
	}
	return nil
}

func writeBuilt(path string, schema *arrow.Schema, recordBuilder *array.RecordBuilder) error {
	writer, err := NewWriter(path, schema)
	if err != nil {
		return err
	}

	record := recordBuilder.NewRecord()
	defer record.Release()

	err = writer.Write(record)
	if err != nil {
		return errors.Join(fmt.Errorf("writing %q: %w", path, err), writer.Close())
	}
	err = writer.Close()
	if err != nil {
		return fmt.Errorf("closing %q: %w", path, err)
	}
	return nil
}

// copyValue appends row i of c to b. Only the column types of this package's
// schemas are supported.
func copyValue(b array.Builder, c arrow.Array, i int) error {
	if c.IsNull(i) {
		b.AppendNull()
		return nil
	}

	switch c := c.(type) {
	case *array.Boolean:
		b.(*array.BooleanBuilder).Append(c.Value(i))
	case *array.Uint32:
		b.(*array.Uint32Builder).Append(c.Value(i))
	case *array.Float64:
		b.(*array.Float64Builder).Append(c.Value(i))
	case *array.String:
		b.(*array.StringBuilder).Append(c.Value(i))
	case *array.Dictionary:
		dict, ok := c.Dictionary().(*array.String)
		if !ok {
			return fmt.Errorf("%w: unsupported dictionary of %T", ErrSchema, c.Dictionary())
		}
		return b.(*array.BinaryDictionaryBuilder).AppendString(dict.Value(c.GetValueIndex(i)))
	case *array.List:
		values, ok := c.ListValues().(*array.String)
		if !ok {
			return fmt.Errorf("%w: unsupported list of %T", ErrSchema, c.ListValues())
		}
		start, end := c.ValueOffsets(i)
		list := make([]string, 0, end-start)
		for j := start; j < end; j++ {
			list = append(list, values.Value(int(j)))
		}
		appendList(b.(*array.ListBuilder), list)
	default:
		return fmt.Errorf("%w: unsupported field type %s", ErrSchema, c.DataType())
	}
	return nil
}
