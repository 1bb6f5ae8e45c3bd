// Package harness runs a registered module in-process, standing in for
// the host: in-memory tables with the declared constraints, per-call
// transactions, lifecycle reducers, and optional call recording. It
// exists so module logic can be tested without publishing anything.
package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tesseradb/modkit/auth"
	"github.com/tesseradb/modkit/internal/calllog"
	"github.com/tesseradb/modkit/module"
	"github.com/tesseradb/modkit/sats"
)

// Option configures a Host.
type Option func(*Host)

// WithLogger routes harness and reducer logging to log.
func WithLogger(log *logrus.Logger) Option {
	return func(h *Host) { h.log = log }
}

// WithFixedTimestamp pins every call's timestamp, so tests that assert
// on time-derived state are reproducible.
func WithFixedTimestamp(ts sats.Timestamp) Option {
	return func(h *Host) {
		h.now = func() sats.Timestamp { return ts }
	}
}

// WithCallLog records every call to the given log.
func WithCallLog(s *calllog.Store) Option {
	return func(h *Host) { h.rec = s }
}

// WithSender sets the default caller identity for Call and Connect.
func WithSender(id auth.Identity) Option {
	return func(h *Host) { h.sender = id }
}

// Host emulates the parts of a database host a module can observe.
type Host struct {
	mu     sync.Mutex
	reg    *module.Registry
	db     *memDB
	log    *logrus.Logger
	now    func() sats.Timestamp
	rec    *calllog.Store
	sender auth.Identity

	initDone bool
	conns    map[auth.ConnectionID]auth.Identity
}

// New builds a host for the registry. The module definition is
// validated up front: a module the real host would reject does not get
// a harness either.
func New(reg *module.Registry, opts ...Option) (*Host, error) {
	if _, err := reg.ModuleDef(); err != nil {
		return nil, err
	}
	db, err := newMemDB(reg.Tables())
	if err != nil {
		return nil, err
	}
	h := &Host{
		reg:    reg,
		db:     db,
		log:    logrus.StandardLogger(),
		now:    func() sats.Timestamp { return sats.TimestampFromTime(time.Now()) },
		sender: auth.FromClaims("harness", "owner"),
		conns:  make(map[auth.ConnectionID]auth.Identity),
	}
	for _, opt := range opts {
		opt(h)
	}
	reg.SetLogger(h.log)
	return h, nil
}

// DB exposes the table state for assertions between calls.
func (h *Host) DB() module.Database {
	return h.db
}

// Init runs the module's init reducer, if it has one. Idempotent: the
// second call is a no-op, as on a real host.
func (h *Host) Init() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initDone {
		return nil
	}
	if _, ok := h.reg.ReducerID("init"); ok {
		if err := h.run("init", h.sender, auth.ConnectionID{}, "", nil); err != nil {
			return err
		}
	}
	h.initDone = true
	return nil
}

// Connect opens a connection for the default sender and runs the
// client_connected reducer if registered.
func (h *Host) Connect() (auth.ConnectionID, error) {
	return h.connect(h.sender, "")
}

// ConnectAs opens a connection for the identity carried by token.
func (h *Host) ConnectAs(token string) (auth.ConnectionID, error) {
	sender, err := identityFromToken(token)
	if err != nil {
		return auth.ConnectionID{}, err
	}
	return h.connect(sender, token)
}

func (h *Host) connect(sender auth.Identity, token string) (auth.ConnectionID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := auth.ConnectionIDFromBytes([16]byte(uuid.New()))
	if _, ok := h.reg.ReducerID("client_connected"); ok {
		if err := h.run("client_connected", sender, conn, token, nil); err != nil {
			return auth.ConnectionID{}, err
		}
	}
	h.conns[conn] = sender
	return conn, nil
}

// Disconnect closes a connection and runs the client_disconnected
// reducer if registered.
func (h *Host) Disconnect(conn auth.ConnectionID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sender, ok := h.conns[conn]
	if !ok {
		return fmt.Errorf("harness: unknown connection %s", conn)
	}
	delete(h.conns, conn)
	if _, registered := h.reg.ReducerID("client_disconnected"); registered {
		return h.run("client_disconnected", sender, conn, "", nil)
	}
	return nil
}

// Call invokes a reducer as the default sender, outside any
// connection.
func (h *Host) Call(name string, args ...any) error {
	return h.callAs(h.sender, "", name, args...)
}

// CallAs invokes a reducer as the identity carried by token. The
// token is handed to the reducer context unverified, the way a real
// host passes an already-verified JWT through.
func (h *Host) CallAs(token, name string, args ...any) error {
	sender, err := identityFromToken(token)
	if err != nil {
		return err
	}
	return h.callAs(sender, token, name, args...)
}

// CallOn invokes a reducer on behalf of an open connection.
func (h *Host) CallOn(conn auth.ConnectionID, name string, args ...any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sender, ok := h.conns[conn]
	if !ok {
		return fmt.Errorf("harness: unknown connection %s", conn)
	}
	payload, err := h.reg.EncodeArgs(name, args...)
	if err != nil {
		return err
	}
	return h.run(name, sender, conn, "", payload)
}

func (h *Host) callAs(sender auth.Identity, token, name string, args ...any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	payload, err := h.reg.EncodeArgs(name, args...)
	if err != nil {
		return err
	}
	return h.run(name, sender, auth.ConnectionID{}, token, payload)
}

// Apply runs one call transactionally with a caller-supplied
// envelope, substituting the harness's table state for the envelope's.
// Replay drives it; unlike Call it does not record to the call log.
func (h *Host) Apply(ctx context.Context, name string, env module.CallEnv, args []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	env.DB = h.db
	snap := h.db.snapshot()
	err := h.reg.CallByName(ctx, name, env, args)
	if err != nil {
		h.db.restore(snap)
	}
	return err
}

// run executes one reducer call as a transaction: an error or panic
// rolls every table mutation back. Must hold h.mu.
func (h *Host) run(name string, sender auth.Identity, conn auth.ConnectionID, token string, args []byte) error {
	ts := h.now()
	env := module.CallEnv{
		Sender:     sender,
		Connection: conn,
		Timestamp:  ts,
		Token:      token,
		DB:         h.db,
	}

	snap := h.db.snapshot()
	err := h.reg.CallByName(context.Background(), name, env, args)
	if err != nil {
		h.db.restore(snap)
	}

	if h.rec != nil {
		entry := calllog.Entry{
			Reducer:         name,
			Args:            args,
			Sender:          sender.String(),
			TimestampMicros: ts.Micros,
			Status:          calllog.StatusCommitted,
		}
		if !conn.IsZero() {
			entry.Connection = conn.String()
		}
		if err != nil {
			entry.Status = calllog.StatusFailed
			entry.Error = err.Error()
		}
		if _, recErr := h.rec.Append(context.Background(), entry); recErr != nil {
			h.log.WithError(recErr).WithField("reducer", name).Error("record call")
		}
	}
	return err
}

// identityFromToken derives the caller identity the way the host
// does: the hex_identity claim when present, else from issuer and
// subject.
func identityFromToken(token string) (auth.Identity, error) {
	ctx := auth.NewCtx(auth.Identity{}, token)
	claims, err := ctx.Claims()
	if err != nil {
		return auth.Identity{}, fmt.Errorf("harness: %w", err)
	}
	return claims.Identity()
}
