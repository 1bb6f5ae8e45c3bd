package calllog

import (
	"context"
	"fmt"
)

// Append records a call and returns its assigned seq. The entry's own
// Seq field is ignored; the log hands out sequence numbers.
func (s *Store) Append(ctx context.Context, e Entry) (int64, error) {
	if e.Status != StatusCommitted && e.Status != StatusFailed {
		return 0, fmt.Errorf("append call: invalid status %q", e.Status)
	}
	if e.Args == nil {
		e.Args = []byte{}
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO calls
		(reducer, args, sender, connection, timestamp_micros, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.Reducer,
		e.Args,
		e.Sender,
		e.Connection,
		e.TimestampMicros,
		e.Status,
		e.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("append call: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append call: %w", err)
	}
	return seq, nil
}

// appendWithSeq inserts an entry keeping its recorded seq. Import uses
// it so an exported log round-trips exactly.
func (s *Store) appendWithSeq(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls
		(seq, reducer, args, sender, connection, timestamp_micros, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.Seq,
		e.Reducer,
		e.Args,
		e.Sender,
		e.Connection,
		e.TimestampMicros,
		e.Status,
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("import call %d: %w", e.Seq, err)
	}
	return nil
}
