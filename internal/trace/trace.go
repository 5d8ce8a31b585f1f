// Package trace exports per-character activations of a generation session as
// an Arrow IPC stream, one row per character.
package trace

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/samcharles93/mlstm/internal/charset"
	"github.com/samcharles93/mlstm/internal/inference"
)

// ContentType is the media type of WriteIPC output.
const ContentType = "application/vnd.apache.arrow.stream"

// Point is one character of a session.
type Point struct {
	Index int
	Code  byte
	// Activation is the tracked neuron after this character was consumed.
	// HasActivation is false for the final prediction or when no neuron was
	// tracked.
	Activation    float32
	HasActivation bool
	Generated     bool
}

// Schema is the Arrow layout written by WriteIPC.
var Schema = arrow.NewSchema(
	[]arrow.Field{
		{Name: "index", Type: arrow.PrimitiveTypes.Int32},
		{Name: "char", Type: arrow.BinaryTypes.String},
		{Name: "code", Type: arrow.PrimitiveTypes.Uint8},
		{Name: "activation", Type: arrow.PrimitiveTypes.Float32, Nullable: true},
		{Name: "generated", Type: arrow.FixedWidthTypes.Boolean},
	},
	nil,
)

// FromResult flattens a session into points.
func FromResult(res *inference.Result) []Point {
	codes := res.Codes()
	pts := make([]Point, len(codes))
	for i, c := range codes {
		p := Point{Index: i, Code: c, Generated: i >= len(res.Seed)}
		if i < len(res.Activations) {
			p.Activation = res.Activations[i]
			p.HasActivation = true
		}
		pts[i] = p
	}
	return pts
}

// Record builds a single record batch from points. The caller releases it.
func Record(mem memory.Allocator, points []Point) arrow.RecordBatch {
	idx := array.NewInt32Builder(mem)
	defer idx.Release()
	chars := array.NewStringBuilder(mem)
	defer chars.Release()
	codes := array.NewUint8Builder(mem)
	defer codes.Release()
	acts := array.NewFloat32Builder(mem)
	defer acts.Release()
	gen := array.NewBooleanBuilder(mem)
	defer gen.Release()

	for _, p := range points {
		idx.Append(int32(p.Index))
		chars.Append(string(charset.Rune(p.Code)))
		codes.Append(p.Code)
		if p.HasActivation {
			acts.Append(p.Activation)
		} else {
			acts.AppendNull()
		}
		gen.Append(p.Generated)
	}

	cols := []arrow.Array{idx.NewArray(), chars.NewArray(), codes.NewArray(), acts.NewArray(), gen.NewArray()}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	return array.NewRecordBatch(Schema, cols, int64(len(points)))
}

// WriteIPC writes points to w as an Arrow IPC stream.
func WriteIPC(w io.Writer, points []Point) error {
	rec := Record(memory.NewGoAllocator(), points)
	defer rec.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

// ReadIPC reads every batch of a stream written by WriteIPC.
func ReadIPC(r io.Reader) ([]Point, error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("trace: open ipc stream: %w", err)
	}
	defer reader.Release()

	if !reader.Schema().Equal(Schema) {
		return nil, fmt.Errorf("trace: unexpected schema %s", reader.Schema())
	}

	var out []Point
	for reader.Next() {
		rec := reader.Record()
		idx := rec.Column(0).(*array.Int32)
		codes := rec.Column(2).(*array.Uint8)
		acts := rec.Column(3).(*array.Float32)
		gen := rec.Column(4).(*array.Boolean)
		for i := 0; i < int(rec.NumRows()); i++ {
			p := Point{
				Index:     int(idx.Value(i)),
				Code:      codes.Value(i),
				Generated: gen.Value(i),
			}
			if acts.IsValid(i) {
				p.Activation = acts.Value(i)
				p.HasActivation = true
			}
			out = append(out, p)
		}
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("trace: read ipc stream: %w", err)
	}
	return out, nil
}
