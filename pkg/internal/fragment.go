// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

package internal

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/google/uuid"
)

// memFile is an in-memory io.WriteSeeker for the Arrow IPC file writer,
// which needs to seek back over what it wrote to patch block offsets.
type memFile struct {
	buf []byte
	pos int64
}

var (
	_ io.WriteSeeker = (*memFile)(nil)
)

func (f *memFile) Write(p []byte) (int, error) {
	if end := f.pos + int64(len(p)); end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[f.pos:], p)
	f.pos += int64(len(p))
	return len(p), nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.pos + offset
	case io.SeekEnd:
		pos = int64(len(f.buf)) + offset
	default:
		return 0, fmt.Errorf("unsupported whence value %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("seek to negative position %d", pos)
	}
	f.pos = pos
	return pos, nil
}

func (f *memFile) Bytes() []byte {
	return f.buf
}

// newFragmentName returns a fresh data file name. The sequence prefix keeps
// listings in commit order; the random suffix avoids collisions between
// writers that picked the same sequence number.
func newFragmentName(seq int) string {
	return fmt.Sprintf("%s/%06d-%s.arrow", dataDir, seq, uuid.NewString())
}

// encodeSchemaIPC serializes a schema as a zero-record Arrow IPC file.
func encodeSchemaIPC(schema *arrow.Schema) ([]byte, error) {
	var f memFile
	w, err := ipc.NewFileWriter(&f, ipc.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to create IPC writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize IPC file: %w", err)
	}
	return f.Bytes(), nil
}

// decodeSchemaIPC reads the schema back out of an Arrow IPC file.
func decodeSchemaIPC(data []byte) (*arrow.Schema, error) {
	r, err := ipc.NewFileReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open IPC file: %w", err)
	}
	defer r.Close()

	schema := r.Schema()
	if schema == nil {
		return nil, fmt.Errorf("IPC file carries no schema")
	}
	return schema, nil
}

// encodeFragment serializes records into one LZ4-compressed Arrow IPC file
// and reports the total row count.
func encodeFragment(schema *arrow.Schema, records []arrow.Record) ([]byte, int64, error) {
	var f memFile
	w, err := ipc.NewFileWriter(&f, ipc.WithSchema(schema), ipc.WithLZ4())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create IPC writer: %w", err)
	}

	var rows int64
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			w.Close()
			return nil, 0, fmt.Errorf("failed to write record: %w", err)
		}
		rows += rec.NumRows()
	}

	if err := w.Close(); err != nil {
		return nil, 0, fmt.Errorf("failed to finalize IPC file: %w", err)
	}
	return f.Bytes(), rows, nil
}

// decodeFragmentRows reads every record in a fragment file and converts it
// to row maps in order.
func decodeFragmentRows(data []byte) ([]map[string]interface{}, error) {
	r, err := ipc.NewFileReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open IPC file: %w", err)
	}
	defer r.Close()

	var rows []map[string]interface{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		recRows, err := recordToRows(rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, recRows...)
	}
	return rows, nil
}
