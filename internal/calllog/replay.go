package calllog

import (
	"context"
	"fmt"

	"github.com/tesseradb/modkit/auth"
	"github.com/tesseradb/modkit/module"
	"github.com/tesseradb/modkit/sats"
)

// Divergence is one replayed call whose outcome differs from the
// recorded one. Reducers are supposed to be deterministic; a
// divergence means the module changed behavior or broke determinism.
type Divergence struct {
	Seq      int64  `json:"seq"`
	Reducer  string `json:"reducer"`
	Recorded string `json:"recorded"`
	Replayed string `json:"replayed"`
	Detail   string `json:"detail,omitempty"`
}

func (d Divergence) String() string {
	return fmt.Sprintf("call %d (%s): recorded %s, replayed %s: %s",
		d.Seq, d.Reducer, d.Recorded, d.Replayed, d.Detail)
}

// CallFunc executes one reducer call transactionally: on error, the
// call's mutations must not be visible afterwards. The harness's
// Apply method satisfies it.
type CallFunc func(ctx context.Context, name string, env module.CallEnv, args []byte) error

// Replay feeds every recorded call back through call, in seq order
// with the recorded senders and timestamps, and reports calls whose
// outcome diverged. Replay itself only fails on infrastructure
// errors; divergences are data.
func Replay(ctx context.Context, s *Store, call CallFunc) ([]Divergence, error) {
	var divergences []Divergence
	err := s.Walk(ctx, func(e Entry) error {
		sender, err := auth.FromHex(e.Sender)
		if err != nil {
			return fmt.Errorf("replay call %d: sender: %w", e.Seq, err)
		}
		env := module.CallEnv{
			Sender:    sender,
			Timestamp: sats.Timestamp{Micros: e.TimestampMicros},
		}
		if e.Connection != "" {
			conn, err := auth.ConnectionIDFromHex(e.Connection)
			if err != nil {
				return fmt.Errorf("replay call %d: connection: %w", e.Seq, err)
			}
			env.Connection = conn
		}

		callErr := call(ctx, e.Reducer, env, e.Args)
		replayed := StatusCommitted
		detail := ""
		if callErr != nil {
			replayed = StatusFailed
			detail = callErr.Error()
		}
		if replayed != e.Status {
			divergences = append(divergences, Divergence{
				Seq:      e.Seq,
				Reducer:  e.Reducer,
				Recorded: e.Status,
				Replayed: replayed,
				Detail:   detail,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return divergences, nil
}
