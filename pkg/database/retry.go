package database

import (
	"context"
	"database/sql/driver"
	"math/rand"
	"strings"
	"time"
)

const (
	retryBaseDelay = 50 * time.Millisecond
	retryMaxDelay  = 2 * time.Second
)

// isLockContention reports whether err is SQLite telling us another
// connection holds the write lock. Both mattn/go-sqlite3 and modernc.org
// surface these only as strings, so match on the known shapes.
func isLockContention(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "(5)") ||
		strings.Contains(msg, "(6)")
}

// retryOnLock runs op, retrying up to retries extra times when it fails with
// lock contention. Delays grow exponentially with up to 25% jitter, capped at
// retryMaxDelay. Any other error returns immediately.
func retryOnLock(ctx context.Context, retries int, op func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = op()
		if err == nil || !isLockContention(err) || attempt == retries {
			return err
		}

		delay := retryBaseDelay * time.Duration(1<<attempt)
		delay += time.Duration(rand.Int63n(int64(delay / 4)))
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// lockRetryConnector wraps a driver.Connector so that every connection it
// hands out transparently retries statements that hit lock contention.
type lockRetryConnector struct {
	connector driver.Connector
	retries   int
}

func newLockRetryConnector(connector driver.Connector, retries int) *lockRetryConnector {
	return &lockRetryConnector{connector: connector, retries: retries}
}

func (c *lockRetryConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &lockRetryConn{conn: conn, retries: c.retries}, nil
}

func (c *lockRetryConnector) Driver() driver.Driver {
	return c.connector.Driver()
}

type lockRetryConn struct {
	conn    driver.Conn
	retries int
}

func (c *lockRetryConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &lockRetryStmt{stmt: stmt, retries: c.retries}, nil
}

func (c *lockRetryConn) Close() error {
	return c.conn.Close()
}

func (c *lockRetryConn) Begin() (driver.Tx, error) {
	var tx driver.Tx
	err := retryOnLock(context.Background(), c.retries, func() error {
		var inner error
		tx, inner = c.conn.Begin() //nolint:staticcheck // deprecated but required for interface
		return inner
	})
	return tx, err
}

func (c *lockRetryConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	beginner, ok := c.conn.(driver.ConnBeginTx)
	if !ok {
		return c.Begin()
	}
	var tx driver.Tx
	err := retryOnLock(ctx, c.retries, func() error {
		var inner error
		tx, inner = beginner.BeginTx(ctx, opts)
		return inner
	})
	return tx, err
}

func (c *lockRetryConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	preparer, ok := c.conn.(driver.ConnPrepareContext)
	if !ok {
		return c.Prepare(query)
	}
	stmt, err := preparer.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &lockRetryStmt{stmt: stmt, retries: c.retries}, nil
}

func (c *lockRetryConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	execer, ok := c.conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	var result driver.Result
	err := retryOnLock(ctx, c.retries, func() error {
		var inner error
		result, inner = execer.ExecContext(ctx, query, args)
		return inner
	})
	return result, err
}

func (c *lockRetryConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	queryer, ok := c.conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	var rows driver.Rows
	err := retryOnLock(ctx, c.retries, func() error {
		var inner error
		rows, inner = queryer.QueryContext(ctx, query, args)
		return inner
	})
	return rows, err
}

func (c *lockRetryConn) Ping(ctx context.Context) error {
	if pinger, ok := c.conn.(driver.Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func (c *lockRetryConn) ResetSession(ctx context.Context) error {
	if resetter, ok := c.conn.(driver.SessionResetter); ok {
		return resetter.ResetSession(ctx)
	}
	return nil
}

func (c *lockRetryConn) IsValid() bool {
	if validator, ok := c.conn.(driver.Validator); ok {
		return validator.IsValid()
	}
	return true
}

type lockRetryStmt struct {
	stmt    driver.Stmt
	retries int
}

func (s *lockRetryStmt) Close() error {
	return s.stmt.Close()
}

func (s *lockRetryStmt) NumInput() int {
	return s.stmt.NumInput()
}

func (s *lockRetryStmt) Exec(args []driver.Value) (driver.Result, error) {
	var result driver.Result
	err := retryOnLock(context.Background(), s.retries, func() error {
		var inner error
		result, inner = s.stmt.Exec(args) //nolint:staticcheck // deprecated but required for interface
		return inner
	})
	return result, err
}

func (s *lockRetryStmt) Query(args []driver.Value) (driver.Rows, error) {
	var rows driver.Rows
	err := retryOnLock(context.Background(), s.retries, func() error {
		var inner error
		rows, inner = s.stmt.Query(args) //nolint:staticcheck // deprecated but required for interface
		return inner
	})
	return rows, err
}

func (s *lockRetryStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	execer, ok := s.stmt.(driver.StmtExecContext)
	if !ok {
		return s.Exec(namedToValues(args))
	}
	var result driver.Result
	err := retryOnLock(ctx, s.retries, func() error {
		var inner error
		result, inner = execer.ExecContext(ctx, args)
		return inner
	})
	return result, err
}

func (s *lockRetryStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	queryer, ok := s.stmt.(driver.StmtQueryContext)
	if !ok {
		return s.Query(namedToValues(args))
	}
	var rows driver.Rows
	err := retryOnLock(ctx, s.retries, func() error {
		var inner error
		rows, inner = queryer.QueryContext(ctx, args)
		return inner
	})
	return rows, err
}

func namedToValues(args []driver.NamedValue) []driver.Value {
	values := make([]driver.Value, len(args))
	for i, arg := range args {
		values[i] = arg.Value
	}
	return values
}
