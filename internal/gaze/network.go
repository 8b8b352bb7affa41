package gaze

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"
)

var ErrBadCheckpoint = errors.New("bad checkpoint")

const (
	magic0       = 'G'
	magic1       = 'Q'
	versionMajor = 1
	versionMinor = 0
)

// Binary specification for a checkpoint (before zstd compression):
// - All the data is stored in little-endian layout
// - All the matrices are written in column-major
// - 4 bytes magic/version: 'G', 'Q', major, minor
// - uint32 network ID
// - uint32 input height, width, channels, kernel size, pool size, classes
// - uint32 conv layer count followed by the filters of each conv layer
// - uint32 hidden layer count followed by the size of each hidden layer
// - float32 weights then float32 biases of each layer with parameters
func (m *Model) Write(w io.Writer, id uint32) error {
	var t = &m.topology
	var header = []uint32{
		id,
		uint32(t.Input.Height), uint32(t.Input.Width), uint32(t.Input.Channels),
		uint32(t.KernelSize), uint32(t.PoolSize), uint32(t.Classes),
		uint32(len(t.ConvFilters)),
	}
	for _, f := range t.ConvFilters {
		header = append(header, uint32(f))
	}
	header = append(header, uint32(len(t.Hidden)))
	for _, h := range t.Hidden {
		header = append(header, uint32(h))
	}

	if _, err := w.Write([]byte{magic0, magic1, versionMajor, versionMinor}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	for _, p := range m.params() {
		if err := writeSlice(w, p.Data); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the zstd-compressed checkpoint to path.
func (m *Model) Save(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	enc, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	var bw = bufio.NewWriter(enc)
	if err = m.Write(bw, 1); err != nil {
		enc.Close()
		return err
	}
	if err = bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Read decodes an uncompressed checkpoint stream.
func Read(r io.Reader) (*Model, uint32, error) {
	var buf = make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrBadCheckpoint, err)
	}
	if buf[0] != magic0 || buf[1] != magic1 {
		return nil, 0, fmt.Errorf("%w: magic word does not match", ErrBadCheckpoint)
	}
	if buf[2] != versionMajor || buf[3] != versionMinor {
		return nil, 0, fmt.Errorf("%w: version %d.%d is not supported", ErrBadCheckpoint, buf[2], buf[3])
	}

	var fixed [8]uint32
	if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrBadCheckpoint, err)
	}
	var id = fixed[0]
	var topology = Topology{
		Input: Shape{
			Height:   int(fixed[1]),
			Width:    int(fixed[2]),
			Channels: int(fixed[3]),
		},
		KernelSize: int(fixed[4]),
		PoolSize:   int(fixed[5]),
		Classes:    int(fixed[6]),
	}
	convFilters, err := readCounts(r, fixed[7])
	if err != nil {
		return nil, 0, err
	}
	topology.ConvFilters = convFilters
	var hiddenCount uint32
	if err := binary.Read(r, binary.LittleEndian, &hiddenCount); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrBadCheckpoint, err)
	}
	hidden, err := readCounts(r, hiddenCount)
	if err != nil {
		return nil, 0, err
	}
	topology.Hidden = hidden
	if err := checkBounds(&topology); err != nil {
		return nil, 0, err
	}

	model, err := NewModel(topology, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrBadCheckpoint, err)
	}
	for _, p := range model.params() {
		if err := readSlice(r, p.Data); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrBadCheckpoint, err)
		}
	}
	return model, id, nil
}

// Load reads a zstd-compressed checkpoint written by Save.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCheckpoint, err)
	}
	defer dec.Close()
	model, _, err := Read(bufio.NewReader(dec))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return model, nil
}

// sizes above these are treated as corruption
const (
	maxLayerCount = 64
	maxDimension  = 1 << 14
	maxNeurons    = 1 << 26
	maxParams     = 1 << 28
)

// checkBounds rejects headers whose network would not fit in memory
// before anything is allocated.
func checkBounds(t *Topology) error {
	var dims = []int{t.Input.Height, t.Input.Width, t.Input.Channels, t.KernelSize, t.PoolSize, t.Classes}
	dims = append(dims, t.ConvFilters...)
	dims = append(dims, t.Hidden...)
	for _, d := range dims {
		if d > maxDimension {
			return fmt.Errorf("%w: dimension %d out of range", ErrBadCheckpoint, d)
		}
	}
	var area = int64(t.Input.Height) * int64(t.Input.Width)
	var channels = int64(t.Input.Channels)
	var kernel = int64(t.KernelSize)
	var params int64
	if area*channels > maxNeurons {
		return fmt.Errorf("%w: input %v too large", ErrBadCheckpoint, t.Input)
	}
	for _, f := range t.ConvFilters {
		params += kernel * kernel * channels * int64(f)
		channels = int64(f)
		if area*channels > maxNeurons {
			return fmt.Errorf("%w: conv layer of %d filters too large", ErrBadCheckpoint, f)
		}
	}
	var size = area * channels
	if t.PoolSize > 1 {
		var pool = t.PoolSize
		size = int64(t.Input.Height/pool) * int64(t.Input.Width/pool) * channels
	}
	for _, h := range t.Hidden {
		params += size * int64(h)
		size = int64(h)
	}
	params += size * int64(t.Classes)
	if params > maxParams {
		return fmt.Errorf("%w: %d parameters", ErrBadCheckpoint, params)
	}
	return nil
}

func readCounts(r io.Reader, n uint32) ([]int, error) {
	if n > maxLayerCount {
		return nil, fmt.Errorf("%w: %d layers", ErrBadCheckpoint, n)
	}
	var raw = make([]uint32, n)
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCheckpoint, err)
	}
	var res = make([]int, n)
	for i, v := range raw {
		res[i] = int(v)
	}
	return res, nil
}

func writeSlice(w io.Writer, data []float64) error {
	buf := make([]byte, 4)
	for j := range data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(data[j])))
		_, err := w.Write(buf)
		if err != nil {
			return err
		}
	}
	return nil
}

func readSlice(r io.Reader, data []float64) error {
	buf := make([]byte, 4)
	for j := range data {
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		data[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	}
	return nil
}
