package sats

import (
	"fmt"
	"time"

	"github.com/tesseradb/modkit/bsatn"
)

// Timestamp is a point in time as microseconds since the Unix epoch.
// On the wire it is a one-field product tagged with TimestampTag.
type Timestamp struct {
	Micros int64
}

// TimestampFromTime converts a time.Time, truncating to microseconds.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{Micros: t.UnixMicro()}
}

// Time converts back to a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.UnixMicro(t.Micros).UTC()
}

// Add offsets the timestamp by a duration.
func (t Timestamp) Add(d TimeDuration) Timestamp {
	return Timestamp{Micros: t.Micros + d.Micros}
}

// Since returns the duration from earlier to t.
func (t Timestamp) Since(earlier Timestamp) TimeDuration {
	return TimeDuration{Micros: t.Micros - earlier.Micros}
}

func (t Timestamp) String() string {
	return t.Time().Format(time.RFC3339Nano)
}

func (Timestamp) AlgebraicType() AlgebraicType {
	return TimestampType()
}

func (t Timestamp) MarshalBSATN(w *bsatn.Writer) error {
	w.WriteI64(t.Micros)
	return nil
}

func (t *Timestamp) UnmarshalBSATN(r *bsatn.Reader) error {
	v, err := r.ReadI64()
	if err != nil {
		return err
	}
	t.Micros = v
	return nil
}

// TimeDuration is a signed span of time in microseconds. On the wire it
// is a one-field product tagged with TimeDurationTag.
type TimeDuration struct {
	Micros int64
}

// DurationFrom converts a time.Duration, truncating to microseconds.
func DurationFrom(d time.Duration) TimeDuration {
	return TimeDuration{Micros: d.Microseconds()}
}

// Duration converts back to a time.Duration.
func (d TimeDuration) Duration() time.Duration {
	return time.Duration(d.Micros) * time.Microsecond
}

func (d TimeDuration) String() string {
	return fmt.Sprintf("%+dµs", d.Micros)
}

func (TimeDuration) AlgebraicType() AlgebraicType {
	return TimeDurationType()
}

func (d TimeDuration) MarshalBSATN(w *bsatn.Writer) error {
	w.WriteI64(d.Micros)
	return nil
}

func (d *TimeDuration) UnmarshalBSATN(r *bsatn.Reader) error {
	v, err := r.ReadI64()
	if err != nil {
		return err
	}
	d.Micros = v
	return nil
}
