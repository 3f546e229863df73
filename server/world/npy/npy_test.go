package npy

import (
	"bytes"
	"testing"
)

func TestUint8GridRoundTrip(t *testing.T) {
	grid := [][]uint8{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
		{0, 0, 0},
	}
	var buf bytes.Buffer
	if err := WriteUint8Grid(&buf, grid); err != nil {
		t.Fatalf("WriteUint8Grid: %v", err)
	}
	got, err := ReadUint8Grid(&buf)
	if err != nil {
		t.Fatalf("ReadUint8Grid: %v", err)
	}
	if len(got) != len(grid) {
		t.Fatalf("width = %d, want %d", len(got), len(grid))
	}
	for x := range grid {
		if !equalBytes(got[x], grid[x]) {
			t.Fatalf("row %d = %v, want %v", x, got[x], grid[x])
		}
	}
}

func TestUint32ArrayRoundTrip(t *testing.T) {
	data := []uint32{0, 1, 4294967295, 123456, 7}
	var buf bytes.Buffer
	if err := WriteUint32Array(&buf, data); err != nil {
		t.Fatalf("WriteUint32Array: %v", err)
	}
	got, err := ReadUint32Array(&buf)
	if err != nil {
		t.Fatalf("ReadUint32Array: %v", err)
	}
	if len(got) != len(data) {
		t.Fatalf("length = %d, want %d", len(got), len(data))
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("data[%d] = %d, want %d", i, got[i], data[i])
		}
	}
}

func TestUint32GridRoundTrip(t *testing.T) {
	grid := [][]uint32{
		{1, 2, 3, 4},
		{0, 4294967295, 7, 8},
	}
	var buf bytes.Buffer
	if err := WriteUint32Grid(&buf, grid); err != nil {
		t.Fatalf("WriteUint32Grid: %v", err)
	}
	got, err := ReadUint32Grid(&buf)
	if err != nil {
		t.Fatalf("ReadUint32Grid: %v", err)
	}
	if len(got) != len(grid) {
		t.Fatalf("width = %d, want %d", len(got), len(grid))
	}
	for x := range grid {
		for y := range grid[x] {
			if got[x][y] != grid[x][y] {
				t.Fatalf("grid[%d][%d] = %d, want %d", x, y, got[x][y], grid[x][y])
			}
		}
	}
}

func TestReadRejectsWrongDType(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteUint32Array(&buf, []uint32{1, 2, 3}); err != nil {
		t.Fatalf("WriteUint32Array: %v", err)
	}
	if _, err := ReadUint8Grid(&buf); err == nil {
		t.Fatal("ReadUint8Grid on a uint32 array should fail")
	}
}

func equalBytes(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
