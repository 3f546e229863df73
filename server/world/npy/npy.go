// Package npy is a minimal reader/writer for the on-disk format the spec
// names for the world's grid arrays: a magic string, a version, a small
// textual header describing dtype/shape, then raw little-endian bytes.
// It implements just enough of NumPy's .npy layout to round-trip this
// repository's own uint8 and uint32 dense arrays - it is not a general
// NumPy-compatibility library.
package npy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var magic = []byte{0x93, 'N', 'U', 'M', 'P', 'Y'}

const (
	versionMajor = 1
	versionMinor = 0
	headerAlign  = 64
)

// DType identifies the element type of a stored array.
type DType string

const (
	Uint8  DType = "<u1"
	Uint32 DType = "<u4"
)

func (d DType) size() int {
	switch d {
	case Uint8:
		return 1
	case Uint32:
		return 4
	default:
		panic(fmt.Sprintf("npy: unknown dtype %q", d))
	}
}

func writeHeader(w io.Writer, dtype DType, shape []int) error {
	dims := make([]string, len(shape))
	for i, s := range shape {
		dims[i] = strconv.Itoa(s)
	}
	shapeStr := strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeStr += ","
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", dtype, shapeStr)

	// Pad with spaces and a trailing newline so magic+version+headerlen+header
	// is a multiple of headerAlign bytes, matching the real format's
	// alignment requirement (so memory-mapping tools could page-align it).
	prefixLen := len(magic) + 2 + 2
	total := prefixLen + len(dict) + 1
	pad := 0
	if rem := total % headerAlign; rem != 0 {
		pad = headerAlign - rem
	}
	dict += strings.Repeat(" ", pad) + "\n"

	if _, err := w.Write(magic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{versionMajor, versionMinor}); err != nil {
		return err
	}
	if len(dict) > 0xFFFF {
		return fmt.Errorf("npy: header too large (%d bytes)", len(dict))
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(dict))); err != nil {
		return err
	}
	_, err := io.WriteString(w, dict)
	return err
}

type header struct {
	dtype DType
	shape []int
}

func readHeader(r io.Reader) (header, error) {
	got := make([]byte, len(magic))
	if _, err := io.ReadFull(r, got); err != nil {
		return header{}, fmt.Errorf("npy: reading magic: %w", err)
	}
	if !bytes.Equal(got, magic) {
		return header{}, fmt.Errorf("npy: bad magic %x", got)
	}
	ver := make([]byte, 2)
	if _, err := io.ReadFull(r, ver); err != nil {
		return header{}, fmt.Errorf("npy: reading version: %w", err)
	}
	var hlen uint16
	if err := binary.Read(r, binary.LittleEndian, &hlen); err != nil {
		return header{}, fmt.Errorf("npy: reading header length: %w", err)
	}
	buf := make([]byte, hlen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return header{}, fmt.Errorf("npy: reading header: %w", err)
	}
	return parseHeaderDict(string(buf))
}

func parseHeaderDict(dict string) (header, error) {
	descrIdx := strings.Index(dict, "'descr': '")
	if descrIdx < 0 {
		return header{}, fmt.Errorf("npy: header missing descr: %q", dict)
	}
	rest := dict[descrIdx+len("'descr': '"):]
	end := strings.IndexByte(rest, '\'')
	if end < 0 {
		return header{}, fmt.Errorf("npy: malformed descr in header: %q", dict)
	}
	dtype := DType(rest[:end])

	shapeIdx := strings.Index(dict, "'shape': (")
	if shapeIdx < 0 {
		return header{}, fmt.Errorf("npy: header missing shape: %q", dict)
	}
	rest = dict[shapeIdx+len("'shape': ("):]
	end = strings.IndexByte(rest, ')')
	if end < 0 {
		return header{}, fmt.Errorf("npy: malformed shape in header: %q", dict)
	}
	parts := strings.Split(rest[:end], ",")
	var shape []int
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return header{}, fmt.Errorf("npy: bad shape entry %q: %w", p, err)
		}
		shape = append(shape, n)
	}
	return header{dtype: dtype, shape: shape}, nil
}

// WriteUint8Grid writes a 2-D row-major (width x height) array of bytes,
// grid[x][y].
func WriteUint8Grid(w io.Writer, grid [][]uint8) error {
	width := len(grid)
	height := 0
	if width > 0 {
		height = len(grid[0])
	}
	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, Uint8, []int{width, height}); err != nil {
		return err
	}
	for _, col := range grid {
		if _, err := bw.Write(col); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadUint8Grid reads back an array written by WriteUint8Grid.
func ReadUint8Grid(r io.Reader) ([][]uint8, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if h.dtype != Uint8 || len(h.shape) != 2 {
		return nil, fmt.Errorf("npy: expected 2-D uint8 array, got dtype=%s shape=%v", h.dtype, h.shape)
	}
	width, height := h.shape[0], h.shape[1]
	grid := make([][]uint8, width)
	for x := range grid {
		grid[x] = make([]uint8, height)
		if _, err := io.ReadFull(r, grid[x]); err != nil {
			return nil, fmt.Errorf("npy: reading row %d: %w", x, err)
		}
	}
	return grid, nil
}

// WriteUint32Grid writes a 2-D row-major (width x height) array of
// little-endian uint32 values, grid[x][y].
func WriteUint32Grid(w io.Writer, grid [][]uint32) error {
	width := len(grid)
	height := 0
	if width > 0 {
		height = len(grid[0])
	}
	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, Uint32, []int{width, height}); err != nil {
		return err
	}
	buf := make([]byte, 4)
	for _, col := range grid {
		for _, v := range col {
			binary.LittleEndian.PutUint32(buf, v)
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ReadUint32Grid reads back an array written by WriteUint32Grid.
func ReadUint32Grid(r io.Reader) ([][]uint32, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if h.dtype != Uint32 || len(h.shape) != 2 {
		return nil, fmt.Errorf("npy: expected 2-D uint32 array, got dtype=%s shape=%v", h.dtype, h.shape)
	}
	width, height := h.shape[0], h.shape[1]
	grid := make([][]uint32, width)
	buf := make([]byte, 4*height)
	for x := range grid {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("npy: reading row %d: %w", x, err)
		}
		row := make([]uint32, height)
		for y := range row {
			row[y] = binary.LittleEndian.Uint32(buf[y*4:])
		}
		grid[x] = row
	}
	return grid, nil
}

// WriteUint32Array writes a 1-D array of little-endian uint32 values.
func WriteUint32Array(w io.Writer, data []uint32) error {
	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, Uint32, []int{len(data)}); err != nil {
		return err
	}
	buf := make([]byte, 4)
	for _, v := range data {
		binary.LittleEndian.PutUint32(buf, v)
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadUint32Array reads back an array written by WriteUint32Array.
func ReadUint32Array(r io.Reader) ([]uint32, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if h.dtype != Uint32 || len(h.shape) != 1 {
		return nil, fmt.Errorf("npy: expected 1-D uint32 array, got dtype=%s shape=%v", h.dtype, h.shape)
	}
	n := h.shape[0]
	out := make([]uint32, n)
	buf := make([]byte, 4*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("npy: reading data: %w", err)
	}
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return out, nil
}
