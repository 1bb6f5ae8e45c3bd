package module

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tesseradb/modkit/auth"
	"github.com/tesseradb/modkit/sats"
)

// ReducerContext is the first argument of every reducer: who called,
// when, over which connection, plus database and logging handles.
type ReducerContext struct {
	ctx        context.Context
	sender     auth.Identity
	connection auth.ConnectionID
	timestamp  sats.Timestamp
	token      string
	db         Database

	authOnce sync.Once
	auth     *auth.Ctx

	// Log carries the reducer name as a field; reducer code logs
	// through it directly.
	Log *logrus.Entry
}

// Context returns the call's context for cancellation propagation.
func (c *ReducerContext) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Sender is the host-verified identity of the caller.
func (c *ReducerContext) Sender() auth.Identity {
	return c.sender
}

// ConnectionID identifies the caller's connection. Zero for calls not
// tied to a connection, such as init and scheduled reducers.
func (c *ReducerContext) ConnectionID() auth.ConnectionID {
	return c.connection
}

// Timestamp is the host-assigned time of the call. All reads of "now"
// inside a reducer must go through it to stay deterministic.
func (c *ReducerContext) Timestamp() sats.Timestamp {
	return c.timestamp
}

// SenderAuth returns the caller's auth context. Built on first use;
// claim parsing inside it is itself lazy.
func (c *ReducerContext) SenderAuth() *auth.Ctx {
	c.authOnce.Do(func() {
		c.auth = auth.NewCtx(c.sender, c.token)
	})
	return c.auth
}

// Db is the transactional view of the module's tables. Nil when the
// reducer runs outside a host or harness.
func (c *ReducerContext) Db() Database {
	return c.db
}
