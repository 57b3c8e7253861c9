// Package snapshot writes and reads debug dumps of an arena: a JSON header line followed by
// a gob body, zstd-compressed. Dumps are for inspection only.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed       int64   `json:"seed"`
	TickRate   int     `json:"tick_rate_hz"`
	HalfExtent float64 `json:"half_extent"`
	NextCubeID int64   `json:"next_cube_id"`

	Snakes []SnakeV1 `json:"snakes"`
	Cubes  []CubeV1  `json:"cubes"`
}

type SnakeV1 struct {
	ID        string      `json:"id"`
	Name      string      `json:"name,omitempty"`
	Bot       bool        `json:"bot,omitempty"`
	Remote    bool        `json:"remote,omitempty"`
	Connected bool        `json:"connected,omitempty"`
	Alive     bool        `json:"alive"`
	Boosting  bool        `json:"boosting,omitempty"`
	Score     int         `json:"score"`
	Rev       uint64      `json:"rev"`
	AckSeq    uint64      `json:"ack_seq,omitempty"`
	Heading   [3]float64  `json:"heading"`
	Segments  []SegmentV1 `json:"segments"`
}

type SegmentV1 struct {
	Pos   [3]float64 `json:"pos"`
	Value int        `json:"value"`
}

type CubeV1 struct {
	ID    int64      `json:"id"`
	Pos   [3]float64 `json:"pos"`
	Value int        `json:"value"`
}

// Mass is the sum of every segment and cube value in the dump.
func (s SnapshotV1) Mass() int {
	m := 0
	for _, sn := range s.Snakes {
		for _, seg := range sn.Segments {
			m += seg.Value
		}
	}
	for _, c := range s.Cubes {
		m += c.Value
	}
	return m
}

// ReadHeader reads only the JSON header line.
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

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
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

	// Read header line (ignore it for now, gob also contains header).
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
