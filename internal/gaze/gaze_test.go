package gaze

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/gazelab/gazequad/internal/ml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallTopology() Topology {
	return Topology{
		Input:       Shape{Height: 6, Width: 8, Channels: 1},
		ConvFilters: []int{3, 4},
		KernelSize:  3,
		PoolSize:    2,
		Hidden:      []int{8},
		Classes:     QuadrantCount,
	}
}

func randomSample(rnd *rand.Rand, shape Shape, classes int) Sample {
	var input = make([]float32, shape.Size())
	for i := range input {
		input[i] = rnd.Float32()
	}
	return Sample{Input: input, Label: rnd.Intn(classes)}
}

// quadrantSample lights up the quadrant matching the label.
func quadrantSample(rnd *rand.Rand, shape Shape, label int) Sample {
	var input = make([]float32, shape.Size())
	for y := 0; y < shape.Height; y++ {
		for x := 0; x < shape.Width; x++ {
			var q = 0
			if x >= shape.Width/2 {
				q++
			}
			if y >= shape.Height/2 {
				q += 2
			}
			var v = 0.2 * rnd.Float32()
			if q == label {
				v += 0.8
			}
			input[shape.Index(y, x, 0)] = v
		}
	}
	return Sample{Input: input, Label: label}
}

func TestParseQuadrant(t *testing.T) {
	tests := []struct {
		in   string
		want Quadrant
	}{
		{"0", TopLeft},
		{"3", BottomRight},
		{"top_right", TopRight},
		{"Bottom-Left", BottomLeft},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuadrant(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	_, err := ParseQuadrant("4")
	assert.Error(t, err)
	_, err = ParseQuadrant("center")
	assert.Error(t, err)
	assert.Equal(t, "bottom_right", BottomRight.String())
}

func TestDefaultTopology(t *testing.T) {
	var topology = DefaultTopology()
	require.NoError(t, topology.Validate())
	assert.Equal(t, Shape{Height: 96, Width: 128, Channels: 1}, topology.Input)
	assert.Equal(t, []int{32, 32, 64}, topology.ConvFilters)
	assert.Equal(t, []int{256, 128}, topology.Hidden)
	assert.Equal(t, 4, topology.Classes)

	topology.KernelSize = 4
	assert.Error(t, topology.Validate())
}

func TestModelShapes(t *testing.T) {
	model, err := NewModel(smallTopology(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, model.layers, 5)
	assert.Equal(t, Shape{Height: 6, Width: 8, Channels: 3}, model.layers[0].OutputShape())
	assert.Equal(t, Shape{Height: 6, Width: 8, Channels: 4}, model.layers[1].OutputShape())
	assert.Equal(t, Shape{Height: 3, Width: 4, Channels: 4}, model.layers[2].OutputShape())
	assert.Equal(t, 8, len(model.layers[3].Outputs()))
	assert.Equal(t, 4, len(model.layers[4].Outputs()))

	var probs = model.Predict(make([]float32, 48))
	var sum float64
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestGradientCheck(t *testing.T) {
	var rnd = rand.New(rand.NewSource(7))
	model, err := NewModel(smallTopology(), rnd)
	require.NoError(t, err)
	var sample = randomSample(rnd, model.topology.Input, 4)

	model.Train(&sample)

	const eps = 1e-6
	var check = func(name string, weights *ml.Matrix, delta *ml.Matrix) {
		for _, i := range []int{0, len(weights.Data) / 2, len(weights.Data) - 1} {
			var orig = weights.Data[i]
			weights.Data[i] = orig + eps
			var plus = model.CalcCost(&sample)
			weights.Data[i] = orig - eps
			var minus = model.CalcCost(&sample)
			weights.Data[i] = orig
			var numeric = (plus - minus) / (2 * eps)
			assert.InDelta(t, numeric, delta.Data[i], 1e-4, "%s[%d]", name, i)
		}
	}
	var conv = model.layers[0].(*Conv2D)
	check("conv0", &conv.weights, &conv.wDelta)
	var dense = model.layers[3].(*Dense)
	check("dense", &dense.weights, &dense.wDelta)
	var out = model.layers[4].(*Dense)
	check("out.bias", &out.biases, &out.bDelta)
}

func TestThreadCopyGradients(t *testing.T) {
	var rnd = rand.New(rand.NewSource(3))
	model, err := NewModel(smallTopology(), rnd)
	require.NoError(t, err)
	var sample = randomSample(rnd, model.topology.Input, 4)

	var worker = model.ThreadCopy()
	worker.Train(&sample)
	worker.AddGradients(model)

	var reference = model.ThreadCopy()
	reference.Train(&sample)

	var got = model.layers[1].(*Conv2D).wDelta.Data
	var want = reference.layers[1].(*Conv2D).wDelta.Data
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12)
	}
	for _, v := range worker.layers[1].(*Conv2D).wDelta.Data {
		assert.Equal(t, 0.0, v)
	}
}

func TestModelLearnsQuadrants(t *testing.T) {
	var rnd = rand.New(rand.NewSource(11))
	var topology = Topology{
		Input:       Shape{Height: 6, Width: 6, Channels: 1},
		ConvFilters: []int{4},
		KernelSize:  3,
		PoolSize:    2,
		Hidden:      []int{16},
		Classes:     QuadrantCount,
	}
	model, err := NewModel(topology, rnd)
	require.NoError(t, err)

	var samples []Sample
	for i := 0; i < 40; i++ {
		samples = append(samples, quadrantSample(rnd, topology.Input, i%QuadrantCount))
	}
	var before = model.Error(samples)

	var opt = &ml.Adam{LearningRate: 0.01}
	for epoch := 0; epoch < 200; epoch++ {
		for i := range samples {
			model.Train(&samples[i])
		}
		model.ApplyGradients(opt, 1/float64(len(samples)), 0)
	}
	var after = model.Error(samples)
	assert.LessOrEqual(t, after, 0.1)
	assert.Less(t, after, before+1e-9)
}

func TestSaveLoad(t *testing.T) {
	var rnd = rand.New(rand.NewSource(5))
	model, err := NewModel(smallTopology(), rnd)
	require.NoError(t, err)
	var sample = randomSample(rnd, model.topology.Input, 4)

	var path = filepath.Join(t.TempDir(), "n-01.nn.zst")
	require.NoError(t, model.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, model.Topology(), loaded.Topology())

	var want = model.Predict(sample.Input)
	var got = loaded.Predict(sample.Input)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	_, _, err := Read(bytes.NewReader([]byte("BZ\x02\x00")))
	assert.ErrorIs(t, err, ErrBadCheckpoint)

	_, _, err = Read(bytes.NewReader([]byte{'G', 'Q', 9, 0}))
	assert.ErrorIs(t, err, ErrBadCheckpoint)

	// oversized headers fail before any allocation
	for _, header := range [][]uint32{
		{1, 1 << 20, 1 << 20, 1 << 20, 3, 2, 4, 0, 0},
		{1, 1 << 13, 1 << 13, 1, 3, 2, 4, 1, 1 << 10, 0},
		{1, 1 << 12, 1 << 12, 1, 3, 0, 4, 0, 1, 1 << 14},
	} {
		var buf bytes.Buffer
		buf.Write([]byte{'G', 'Q', 1, 0})
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, header))
		_, _, err = Read(&buf)
		assert.ErrorIs(t, err, ErrBadCheckpoint, "header %v", header)
	}

	var path = filepath.Join(t.TempDir(), "broken.nn.zst")
	require.NoError(t, os.WriteFile(path, []byte("not zstd"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
