package cli

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/spf13/cobra"

	"github.com/tesseradb/modkit/module"
)

type counterRow struct {
	ID    uint64 `bsatn:"id"`
	Value int64  `bsatn:"value"`
}

// newCounterRegistry builds a small module: one counter table and a
// bump reducer that rejects negative deltas.
func newCounterRegistry(t *testing.T) *module.Registry {
	t.Helper()
	r := module.NewRegistry()
	module.MustRegisterTable[counterRow](r, "counter", module.PrimaryKey("id"))
	r.MustRegisterReducer("bump", func(ctx *module.ReducerContext, id uint64, delta int64) error {
		if delta < 0 {
			return fmt.Errorf("delta must be non-negative")
		}
		counters, err := ctx.Db().Table("counter")
		if err != nil {
			return err
		}
		var c counterRow
		found, err := counters.FindByKey("id", id, &c)
		if err != nil {
			return err
		}
		if !found {
			return counters.Insert(&counterRow{ID: id, Value: delta})
		}
		c.Value += delta
		return counters.Update(&c)
	}, module.WithParams("id", "delta"))
	return r
}

// execute runs a command with args and captures its stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
