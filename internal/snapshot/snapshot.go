// Package snapshot writes mesh buffers to disk as a zstd stream holding a
// JSON header line followed by a gob body.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/talgya/hexworld/internal/mesh"
	"github.com/talgya/hexworld/internal/world"
)

// Version is the format written by Write.
const Version = 1

// ErrVersion is returned when a snapshot has an unsupported version.
var ErrVersion = errors.New("unsupported snapshot version")

type Header struct {
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Cells     int       `json:"cells"`
	Vertices  int       `json:"vertices"`
}

type MeshV1 struct {
	Header   Header        `json:"header"`
	Geometry mesh.Geometry `json:"geometry"`
	Ranges   []CellRangeV1 `json:"ranges"`
}

// CellRangeV1 ties a block of the buffers to the cell coordinate that owns it.
type CellRangeV1 struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Start int `json:"start"`
	Count int `json:"count"`
}

// FromBuilder captures the builder's current buffers.
func FromBuilder(b *mesh.Builder, g *world.Grid) MeshV1 {
	snap := MeshV1{
		Header: Header{
			Version:   Version,
			ID:        uuid.NewString(),
			CreatedAt: time.Now().UTC(),
			Width:     g.Width,
			Height:    g.Height,
			Cells:     b.Tracked(),
			Vertices:  b.VertexCount(),
		},
		Geometry: b.Geometry(),
		Ranges:   make([]CellRangeV1, 0, b.Tracked()),
	}
	for cell, r := range b.Ranges() {
		snap.Ranges = append(snap.Ranges, CellRangeV1{
			X: cell.Coord.X, Y: cell.Coord.Y, Start: r.Start, Count: r.Count,
		})
	}
	return snap
}

// Write stores snap at path, creating parent directories, and returns the
// compressed size in bytes.
func Write(path string, snap MeshV1) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return 0, err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return 0, err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return 0, fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return 0, err
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("zstd close: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Read loads a snapshot written by Write.
func Read(path string) (MeshV1, error) {
	var snap MeshV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header; the line is only for quick inspection.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("version %d: %w", snap.Header.Version, ErrVersion)
	}
	return snap, nil
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
