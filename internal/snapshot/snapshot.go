// Package snapshot provides durable persistence and crash recovery for the
// vector index: versioned snapshot files, scheduled flushing, and startup
// reconciliation against the photo metadata store.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cloudzy/photofind/internal/vector"
)

// ErrSnapshotIO wraps snapshot read/write failures. Flush failures are
// retried on the next trigger; load failures fall back to an empty snapshot
// plus full reconciliation.
var ErrSnapshotIO = errors.New("snapshot i/o error")

const (
	snapshotMagic   uint32 = 0x50465358 // "PFSX"
	snapshotVersion uint32 = 1
)

// Snapshot is the durable form of the index: header plus the live entry set.
// Generation increases monotonically with every successful flush.
type Snapshot struct {
	Dimensions int
	Metric     vector.Metric
	Generation uint64
	Entries    []vector.Entry
}

// IDs returns the set of photo IDs contained in the snapshot.
func (s *Snapshot) IDs() map[int64]struct{} {
	ids := make(map[int64]struct{}, len(s.Entries))
	for _, e := range s.Entries {
		ids[e.ID] = struct{}{}
	}
	return ids
}

// Write serializes the snapshot to path atomically: the bytes go to a
// temporary file in the same directory which is fsynced and then renamed
// into place, so a reader never observes a partially written snapshot.
func Write(path string, s *Snapshot) error {
	codec, err := vector.NewCodec(s.Dimensions)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create snapshot dir: %w", ErrSnapshotIO, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrSnapshotIO, err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := writeHeader(tmp, s); err != nil {
		return err
	}
	for _, e := range s.Entries {
		if err := binary.Write(tmp, binary.LittleEndian, e.ID); err != nil {
			return fmt.Errorf("%w: write entry id: %w", ErrSnapshotIO, err)
		}
		if _, err := tmp.Write(codec.Encode(e.Vector)); err != nil {
			return fmt.Errorf("%w: write entry vector: %w", ErrSnapshotIO, err)
		}
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %w", ErrSnapshotIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrSnapshotIO, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: publish snapshot: %w", ErrSnapshotIO, err)
	}
	return nil
}

func writeHeader(w io.Writer, s *Snapshot) error {
	for _, v := range []any{
		snapshotMagic,
		snapshotVersion,
		uint32(s.Dimensions),
		s.Metric.Code(),
		s.Generation,
		uint32(len(s.Entries)),
	} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("%w: write header: %w", ErrSnapshotIO, err)
		}
	}
	return nil
}

// Read deserializes the snapshot at path. Missing files are reported via
// os.IsNotExist on the unwrapped cause; callers normally go through
// ReadOrEmpty instead.
func Read(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: open snapshot: %w", ErrSnapshotIO, err)
	}
	defer f.Close()

	var (
		magic, version, dims, count uint32
		metricCode                  uint8
		generation                  uint64
	)
	for _, v := range []any{&magic, &version, &dims, &metricCode, &generation, &count} {
		if err := binary.Read(f, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("%w: read header: %w", ErrSnapshotIO, err)
		}
	}
	if magic != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrSnapshotIO, magic)
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", ErrSnapshotIO, version)
	}
	metric, err := vector.MetricFromCode(metricCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotIO, err)
	}
	codec, err := vector.NewCodec(int(dims))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotIO, err)
	}

	s := &Snapshot{
		Dimensions: int(dims),
		Metric:     metric,
		Generation: generation,
		Entries:    make([]vector.Entry, 0, count),
	}
	buf := make([]byte, codec.EncodedSize())
	for i := uint32(0); i < count; i++ {
		var id int64
		if err := binary.Read(f, binary.LittleEndian, &id); err != nil {
			return nil, fmt.Errorf("%w: read entry id: %w", ErrSnapshotIO, err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, fmt.Errorf("%w: read entry vector: %w", ErrSnapshotIO, err)
		}
		s.Entries = append(s.Entries, vector.Entry{ID: id, Vector: codec.Decode(buf)})
	}
	return s, nil
}

// ReadOrEmpty reads the snapshot at path, returning an empty generation-0
// snapshot when the file does not exist. A missing snapshot is a valid
// startup state, not an error.
func ReadOrEmpty(path string, dimensions int, metric vector.Metric) (*Snapshot, error) {
	s, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{Dimensions: dimensions, Metric: metric}, nil
		}
		return nil, err
	}
	return s, nil
}
