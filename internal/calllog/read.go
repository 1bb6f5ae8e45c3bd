package calllog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Count returns the number of recorded calls.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calls").Scan(&n); err != nil {
		return 0, fmt.Errorf("count calls: %w", err)
	}
	return n, nil
}

// Get loads one entry by seq.
func (s *Store) Get(ctx context.Context, seq int64) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, reducer, args, sender, connection, timestamp_micros, status, error
		FROM calls WHERE seq = ?
	`, seq)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("call %d: not recorded", seq)
	}
	return e, err
}

// Walk calls fn for every entry in seq order. fn returning an error
// stops the walk.
func (s *Store) Walk(ctx context.Context, fn func(Entry) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, reducer, args, sender, connection, timestamp_micros, status, error
		FROM calls ORDER BY seq
	`)
	if err != nil {
		return fmt.Errorf("walk calls: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanEntry(scan func(...any) error) (Entry, error) {
	var e Entry
	err := scan(
		&e.Seq,
		&e.Reducer,
		&e.Args,
		&e.Sender,
		&e.Connection,
		&e.TimestampMicros,
		&e.Status,
		&e.Error,
	)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}
