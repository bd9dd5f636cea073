package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
)

// Column names of the persisted table.
const (
	ColDateTime = "DateTime"
	ColDate     = "Date"
	ColHour     = "Hour"
	ColVenue    = "Venue"
	ColEntering = "Entering"
	ColInside   = "Inside"
	ColIsOpen   = "IsOpen"
)

// Schema is the arrow schema of the persisted table. DateTime is a naive
// nanosecond timestamp.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: ColDateTime, Type: &arrow.TimestampType{Unit: arrow.Nanosecond}, Nullable: true},
	{Name: ColDate, Type: arrow.FixedWidthTypes.Date32, Nullable: true},
	{Name: ColHour, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: ColVenue, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColEntering, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: ColInside, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: ColIsOpen, Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
}, nil)

const readBatchRows = 64 * 1024

// EncodeParquet serializes records into a Snappy-compressed parquet file with
// the arrow schema stored in its metadata.
func EncodeParquet(records []domain.Record) ([]byte, error) {
	b := array.NewRecordBuilder(memory.DefaultAllocator, Schema)
	defer b.Release()

	dateTimes := b.Field(0).(*array.TimestampBuilder)
	dates := b.Field(1).(*array.Date32Builder)
	hours := b.Field(2).(*array.Int64Builder)
	venues := b.Field(3).(*array.StringBuilder)
	entering := b.Field(4).(*array.Float64Builder)
	inside := b.Field(5).(*array.Float64Builder)
	isOpen := b.Field(6).(*array.BooleanBuilder)

	for _, r := range records {
		dateTimes.Append(arrow.Timestamp(r.DateTime.UnixNano()))
		dates.Append(arrow.Date32FromTime(r.Date))
		hours.Append(int64(r.Hour))
		venues.Append(string(r.Venue))
		entering.Append(r.Entering)
		inside.Append(r.Inside)
		isOpen.Append(r.IsOpen)
	}

	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithVersion(parquet.V2_LATEST),
	)
	fw, err := pqarrow.NewFileWriter(Schema, &buf, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("write parquet: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeParquet reads a persisted table. Columns are resolved by name so
// files carrying extra columns (e.g. a pandas index) are accepted.
func DecodeParquet(ctx context.Context, data []byte) ([]domain.Record, error) {
	rdr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer rdr.Close() //nolint:errcheck // in-memory reader

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: readBatchRows}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("open arrow reader: %w", err)
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	defer tbl.Release()

	idx, err := columnIndices(tbl.Schema())
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, tbl.NumRows())
	tr := array.NewTableReader(tbl, readBatchRows)
	defer tr.Release()
	for tr.Next() {
		rec := tr.Record()
		batch, err := decodeBatch(rec, idx)
		if err != nil {
			return nil, err
		}
		records = append(records, batch...)
	}
	if err := tr.Err(); err != nil {
		return nil, fmt.Errorf("read batches: %w", err)
	}
	return records, nil
}

type columnIndex struct {
	dateTime, date, hour, venue, entering, inside, isOpen int
}

func columnIndices(schema *arrow.Schema) (columnIndex, error) {
	find := func(name string) (int, error) {
		indices := schema.FieldIndices(name)
		if len(indices) == 0 {
			return 0, fmt.Errorf("%w: missing column %q", ErrSchema, name)
		}
		return indices[0], nil
	}
	var (
		idx columnIndex
		err error
	)
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{ColDateTime, &idx.dateTime},
		{ColDate, &idx.date},
		{ColHour, &idx.hour},
		{ColVenue, &idx.venue},
		{ColEntering, &idx.entering},
		{ColInside, &idx.inside},
		{ColIsOpen, &idx.isOpen},
	} {
		if *c.dst, err = find(c.name); err != nil {
			return columnIndex{}, err
		}
	}
	return idx, nil
}

func decodeBatch(rec arrow.Record, idx columnIndex) ([]domain.Record, error) {
	n := int(rec.NumRows())
	out := make([]domain.Record, n)

	dateTimes, err := timeValues(rec.Column(idx.dateTime), n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ColDateTime, err)
	}
	dates, err := timeValues(rec.Column(idx.date), n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ColDate, err)
	}
	hours, err := intValues(rec.Column(idx.hour), n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ColHour, err)
	}
	venues, err := stringValues(rec.Column(idx.venue), n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ColVenue, err)
	}
	entering, err := floatValues(rec.Column(idx.entering), n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ColEntering, err)
	}
	inside, err := floatValues(rec.Column(idx.inside), n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ColInside, err)
	}
	open, ok := rec.Column(idx.isOpen).(*array.Boolean)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", ColIsOpen, ErrSchema, rec.Column(idx.isOpen).DataType())
	}

	for i := range out {
		out[i] = domain.Record{
			DateTime: dateTimes[i],
			Date:     domain.DateOf(dates[i]),
			Hour:     int(hours[i]),
			Venue:    domain.Venue(venues[i]),
			Entering: entering[i],
			Inside:   inside[i],
			IsOpen:   open.IsValid(i) && open.Value(i),
		}
	}
	return out, nil
}

func timeValues(col arrow.Array, n int) ([]time.Time, error) {
	out := make([]time.Time, n)
	switch a := col.(type) {
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		for i := 0; i < n; i++ {
			if a.IsValid(i) {
				out[i] = a.Value(i).ToTime(unit)
			}
		}
	case *array.Date32:
		for i := 0; i < n; i++ {
			if a.IsValid(i) {
				out[i] = a.Value(i).ToTime()
			}
		}
	case *array.Date64:
		for i := 0; i < n; i++ {
			if a.IsValid(i) {
				out[i] = a.Value(i).ToTime()
			}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrSchema, col.DataType())
	}
	return out, nil
}

func intValues(col arrow.Array, n int) ([]int64, error) {
	out := make([]int64, n)
	switch a := col.(type) {
	case *array.Int64:
		for i := 0; i < n; i++ {
			out[i] = a.Value(i)
		}
	case *array.Int32:
		for i := 0; i < n; i++ {
			out[i] = int64(a.Value(i))
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrSchema, col.DataType())
	}
	return out, nil
}

func floatValues(col arrow.Array, n int) ([]float64, error) {
	out := make([]float64, n)
	switch a := col.(type) {
	case *array.Float64:
		for i := 0; i < n; i++ {
			out[i] = a.Value(i)
		}
	case *array.Int64:
		for i := 0; i < n; i++ {
			out[i] = float64(a.Value(i))
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrSchema, col.DataType())
	}
	return out, nil
}

func stringValues(col arrow.Array, n int) ([]string, error) {
	out := make([]string, n)
	switch a := col.(type) {
	case *array.String:
		for i := 0; i < n; i++ {
			out[i] = a.Value(i)
		}
	case *array.LargeString:
		for i := 0; i < n; i++ {
			out[i] = a.Value(i)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrSchema, col.DataType())
	}
	return out, nil
}
