// Package snapfile persists snapshot sequences to disk as
// zstd-compressed JSON lines. Persistence is layered on the data model's
// exported fields; the core carries no file format of its own.
package snapfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/willibrandon/MemStep/pkg/memory"
)

// CompressionType defines the compression applied to a snapshot file
type CompressionType int

const (
	// NoCompression writes plain JSON lines
	NoCompression CompressionType = iota
	// ZstdCompression wraps the stream in a Zstandard frame
	ZstdCompression
)

// DefaultCompression is the compression used when no options are given
var DefaultCompression = ZstdCompression

// Options contains options for writing a snapshot file
type Options struct {
	Compression CompressionType
}

// DefaultOptions returns the default write options
func DefaultOptions() Options {
	return Options{Compression: DefaultCompression}
}

const fileFormat = "memstep-snapshots"

const formatVersion = 1

// zstd frames start with the magic number 0xFD2FB528, little-endian
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

type headerJSON struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
	Count   int    `json:"count"`
}

// Save writes the snapshots to path with default options
func Save(path string, snapshots []*memory.MemorySnapshot) error {
	return SaveWithOptions(path, snapshots, DefaultOptions())
}

// SaveWithOptions writes the snapshots to path
func SaveWithOptions(path string, snapshots []*memory.MemorySnapshot, options Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save snapshots: %w", err)
	}
	if err := Write(f, snapshots, options); err != nil {
		f.Close()
		return fmt.Errorf("save snapshots to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("save snapshots to %s: %w", path, err)
	}
	return nil
}

// Load reads a snapshot sequence from path, detecting compression from
// the file contents
func Load(path string) ([]*memory.MemorySnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	defer f.Close()

	snapshots, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("load snapshots from %s: %w", path, err)
	}
	return snapshots, nil
}

// Write encodes the snapshots onto w: a header line followed by one JSON
// line per snapshot, optionally compressed as a single zstd frame
func Write(w io.Writer, snapshots []*memory.MemorySnapshot, options Options) error {
	bw := bufio.NewWriter(w)

	var payload io.Writer = bw
	var encoder *zstd.Encoder
	if options.Compression == ZstdCompression {
		var err error
		encoder, err = zstd.NewWriter(bw)
		if err != nil {
			return err
		}
		payload = encoder
	}

	enc := json.NewEncoder(payload)
	if err := enc.Encode(headerJSON{Format: fileFormat, Version: formatVersion, Count: len(snapshots)}); err != nil {
		return err
	}
	for _, s := range snapshots {
		if s == nil {
			return errors.New("nil snapshot")
		}
		if err := enc.Encode(encodeSnapshot(s)); err != nil {
			return err
		}
	}

	if encoder != nil {
		if err := encoder.Close(); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read decodes a snapshot sequence from r, sniffing the zstd magic to
// decide whether the stream is compressed
func Read(r io.Reader) ([]*memory.MemorySnapshot, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	var payload io.Reader = br
	if bytes.Equal(magic, zstdMagic) {
		decoder, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer decoder.Close()
		payload = decoder
	}

	dec := json.NewDecoder(payload)

	var header headerJSON
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if header.Format != fileFormat {
		return nil, fmt.Errorf("unexpected file format %q", header.Format)
	}
	if header.Version != formatVersion {
		return nil, fmt.Errorf("unsupported format version %d", header.Version)
	}

	var snapshots []*memory.MemorySnapshot
	for {
		var j snapshotJSON
		if err := dec.Decode(&j); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read snapshot %d: %w", len(snapshots), err)
		}
		s, err := decodeSnapshot(&j)
		if err != nil {
			return nil, fmt.Errorf("read snapshot %d: %w", len(snapshots), err)
		}
		snapshots = append(snapshots, s)
	}

	if header.Count != len(snapshots) {
		return nil, fmt.Errorf("header count %d does not match %d snapshots read", header.Count, len(snapshots))
	}
	return snapshots, nil
}
