package format

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	pqcompress "github.com/apache/arrow-go/v18/parquet/compress"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/JonMunkholm/datacleaner/internal/dataset"
)

// parquetRowGroupSize is the number of rows per row group on write.
const parquetRowGroupSize = 64 * 1024

func loadParquet(ctx context.Context, src Source, opts Options) (*dataset.Dataset, error) {
	pf, err := pqfile.OpenParquetFile(src.Path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	defer tbl.Release()

	cols := make([]dataset.Column, 0, tbl.NumCols())
	for i := 0; i < int(tbl.NumCols()); i++ {
		col := tbl.Column(i)
		vals := make([]dataset.Value, 0, col.Len())
		for _, chunk := range col.Data().Chunks() {
			vals = appendArrowValues(vals, chunk)
		}
		cols = append(cols, dataset.Column{Name: col.Name(), Values: dataset.Unify(vals)})
	}
	return dataset.FromColumns(cols)
}

func appendArrowValues(dst []dataset.Value, arr arrow.Array) []dataset.Value {
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			dst = append(dst, dataset.Null())
			continue
		}
		dst = append(dst, arrowValue(arr, i))
	}
	return dst
}

func arrowValue(arr arrow.Array, i int) dataset.Value {
	switch a := arr.(type) {
	case *array.Int8:
		return dataset.Int(int64(a.Value(i)))
	case *array.Int16:
		return dataset.Int(int64(a.Value(i)))
	case *array.Int32:
		return dataset.Int(int64(a.Value(i)))
	case *array.Int64:
		return dataset.Int(a.Value(i))
	case *array.Uint8:
		return dataset.Int(int64(a.Value(i)))
	case *array.Uint16:
		return dataset.Int(int64(a.Value(i)))
	case *array.Uint32:
		return dataset.Int(int64(a.Value(i)))
	case *array.Uint64:
		if v := a.Value(i); v <= math.MaxInt64 {
			return dataset.Int(int64(v))
		}
		return dataset.Text(a.ValueStr(i))
	case *array.Float32:
		return dataset.Float(float64(a.Value(i)))
	case *array.Float64:
		return dataset.Float(a.Value(i))
	case *array.Boolean:
		return dataset.Bool(a.Value(i))
	case *array.String:
		return dataset.Text(a.Value(i))
	case *array.LargeString:
		return dataset.Text(a.Value(i))
	case *array.Binary:
		return dataset.Text(string(a.Value(i)))
	default:
		return dataset.Text(arr.ValueStr(i))
	}
}

// WriteParquet writes d as a single-file Parquet table. Int columns become
// int64, Float float64, Bool boolean; Text, mixed and all-null columns are
// strings. Nulls stay null.
func WriteParquet(w io.Writer, d *dataset.Dataset) error {
	cols := d.Columns()
	kinds := make([]dataset.Kind, len(cols))
	values := make([][]dataset.Value, len(cols))
	fields := make([]arrow.Field, len(cols))
	for j, c := range cols {
		values[j] = dataset.Unify(c.Values)
		kinds[j] = columnKind(values[j])
		fields[j] = arrow.Field{Name: c.Name, Type: arrowType(kinds[j]), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	for j := range cols {
		fb := b.Field(j)
		for _, v := range values[j] {
			if v.IsNull() {
				fb.AppendNull()
				continue
			}
			switch kinds[j] {
			case dataset.KindInt:
				n, _ := v.AsInt()
				fb.(*array.Int64Builder).Append(n)
			case dataset.KindFloat:
				f, _ := v.AsFloat()
				fb.(*array.Float64Builder).Append(f)
			case dataset.KindBool:
				bv, _ := v.AsBool()
				fb.(*array.BooleanBuilder).Append(bv)
			default:
				fb.(*array.StringBuilder).Append(v.String())
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(pqcompress.Codecs.Snappy))
	if err := pqarrow.WriteTable(tbl, w, parquetRowGroupSize, props, pqarrow.DefaultWriterProps()); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	return nil
}

func columnKind(vals []dataset.Value) dataset.Kind {
	for _, v := range vals {
		if !v.IsNull() {
			return v.Kind()
		}
	}
	return dataset.KindText
}

func arrowType(k dataset.Kind) arrow.DataType {
	switch k {
	case dataset.KindInt:
		return arrow.PrimitiveTypes.Int64
	case dataset.KindFloat:
		return arrow.PrimitiveTypes.Float64
	case dataset.KindBool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}
