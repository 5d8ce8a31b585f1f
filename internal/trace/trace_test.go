package trace

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/mlstm/internal/inference"
)

func sampleResult() *inference.Result {
	return &inference.Result{
		Seed:        []byte("hi"),
		Generated:   []byte{'!', 0xE9},
		Neuron:      3,
		Activations: []float32{0.1, -0.2, 0.7},
	}
}

func TestFromResult(t *testing.T) {
	t.Parallel()
	pts := FromResult(sampleResult())
	require.Len(t, pts, 4)
	assert.Equal(t, Point{Index: 0, Code: 'h', Activation: 0.1, HasActivation: true}, pts[0])
	assert.True(t, pts[2].Generated)
	assert.False(t, pts[1].Generated)
	assert.False(t, pts[3].HasActivation, "the last prediction is never consumed")
}

func TestIPCRoundTrip(t *testing.T) {
	t.Parallel()
	want := FromResult(sampleResult())

	var buf bytes.Buffer
	require.NoError(t, WriteIPC(&buf, want))
	got, err := ReadIPC(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecordColumns(t *testing.T) {
	t.Parallel()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := Record(mem, FromResult(sampleResult()))
	defer rec.Release()
	assert.EqualValues(t, 4, rec.NumRows())
	assert.EqualValues(t, 5, rec.NumCols())
	assert.Equal(t, "é", rec.Column(1).ValueStr(3))
	assert.Equal(t, 1, rec.Column(3).NullN())
}

func TestReadIPCRejectsGarbage(t *testing.T) {
	t.Parallel()
	_, err := ReadIPC(bytes.NewReader([]byte("not arrow")))
	require.Error(t, err)
}
