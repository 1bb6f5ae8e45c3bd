package calllog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/tesseradb/modkit/bsatn"
)

// exportMagic opens an exported log stream: "MKCL" plus a format
// version byte.
var exportMagic = []byte{'M', 'K', 'C', 'L', 1}

// wireEntry is the serialized form of an Entry. Field order is the
// export format.
type wireEntry struct {
	Seq             int64
	Reducer         string
	Args            []byte
	Sender          string
	Connection      string
	TimestampMicros int64
	Committed       bool
	Error           string
}

// Export writes the whole log to w as a gzip-compressed stream of
// length-prefixed BSATN entries behind a magic header.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	zw := gzip.NewWriter(w)
	if _, err := zw.Write(exportMagic); err != nil {
		return fmt.Errorf("export calls: %w", err)
	}

	err := s.Walk(ctx, func(e Entry) error {
		data, err := bsatn.Marshal(wireEntry{
			Seq:             e.Seq,
			Reducer:         e.Reducer,
			Args:            e.Args,
			Sender:          e.Sender,
			Connection:      e.Connection,
			TimestampMicros: e.TimestampMicros,
			Committed:       e.Status == StatusCommitted,
			Error:           e.Error,
		})
		if err != nil {
			return fmt.Errorf("export call %d: %w", e.Seq, err)
		}
		bw := bsatn.NewWriter()
		if err := bw.WriteByteSlice(data); err != nil {
			return fmt.Errorf("export call %d: %w", e.Seq, err)
		}
		if _, err := zw.Write(bw.Bytes()); err != nil {
			return fmt.Errorf("export call %d: %w", e.Seq, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return zw.Close()
}

// Import appends entries from an exported stream, keeping their
// recorded sequence numbers. The target log must not already contain
// any of them.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("import calls: %w", err)
	}
	defer zr.Close()

	header := make([]byte, len(exportMagic))
	if _, err := io.ReadFull(zr, header); err != nil {
		return 0, fmt.Errorf("import calls: read header: %w", err)
	}
	if !bytes.Equal(header, exportMagic) {
		return 0, fmt.Errorf("import calls: not a call log export (bad magic %x)", header)
	}

	imported := 0
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(zr, lenBuf[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return imported, nil
			}
			return imported, fmt.Errorf("import calls: %w", err)
		}
		rd := bsatn.NewReader(lenBuf[:])
		n, _ := rd.ReadU32()
		payload := make([]byte, n)
		if _, err := io.ReadFull(zr, payload); err != nil {
			return imported, fmt.Errorf("import calls: truncated entry: %w", err)
		}

		var we wireEntry
		if err := bsatn.Unmarshal(payload, &we); err != nil {
			return imported, fmt.Errorf("import calls: decode entry: %w", err)
		}
		status := StatusFailed
		if we.Committed {
			status = StatusCommitted
		}
		err := s.appendWithSeq(ctx, Entry{
			Seq:             we.Seq,
			Reducer:         we.Reducer,
			Args:            we.Args,
			Sender:          we.Sender,
			Connection:      we.Connection,
			TimestampMicros: we.TimestampMicros,
			Status:          status,
			Error:           we.Error,
		})
		if err != nil {
			return imported, err
		}
		imported++
	}
}
