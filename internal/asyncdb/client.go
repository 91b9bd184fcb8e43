// Package asyncdb implements the database client as an explicit per-query
// state machine driven by a bounded worker pool rather than by direct
// blocking calls on the caller's goroutine. database/sql is blocking under
// the hood, so the non-blocking contract is realized by moving the block
// onto a pool worker and posting state transitions — not just the final
// result — back to the caller.
package asyncdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/netresearch/cweb-go/internal/retry"
)

// QueryState names a step in the per-query state machine.
type QueryState int

const (
	StateInit QueryState = iota
	StateConnecting
	StateQuerying
	StateStoringResult
	StateFetchingRows
	StateFinished
	StateError
)

func (s QueryState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateConnecting:
		return "CONNECTING"
	case StateQuerying:
		return "QUERYING"
	case StateStoringResult:
		return "STORING_RESULT"
	case StateFetchingRows:
		return "FETCHING_ROWS"
	case StateFinished:
		return "FINISHED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Row is one fetched row; cells are owned, NUL-safe byte copies, nil for
// SQL NULL.
type Row struct {
	Cells [][]byte
}

// Result is the outcome of a successful query.
type Result struct {
	Columns      []string
	Rows         []Row
	AffectedRows int64
}

// Config tunes a Client's connection pool and retry behavior.
type Config struct {
	DSN         string
	MaxOpen     int
	MaxIdle     int
	ConnTimeout time.Duration
	Workers     int
	Retry       bool
}

// DefaultConfig returns a modest pool sized for a handful of concurrent
// handler-issued queries.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:         dsn,
		MaxOpen:     10,
		MaxIdle:     5,
		ConnTimeout: 5 * time.Second,
		Workers:     4,
	}
}

// Query describes one async query request.
type Query struct {
	SQL  string
	Args []any
	// OnTransition is called on every state advance, including the
	// terminal FINISHED/ERROR state. It may be nil.
	OnTransition func(QueryState)
}

// Client executes queries on a bounded worker pool, advancing each query
// through the documented state machine and reporting every transition.
type Client struct {
	db   *sql.DB
	cfg  Config
	jobs chan func()
	wg   sync.WaitGroup
}

// New opens the underlying connection pool and starts the worker pool.
// Opening is lazy in database/sql (no connection is made yet), so this
// call does not block on the network.
func New(cfg Config) (*Client, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("asyncdb: open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)

	c := &Client{db: db, cfg: cfg, jobs: make(chan func(), cfg.Workers*4)}

	for i := 0; i < cfg.Workers; i++ {
		c.wg.Add(1)

		go func() {
			defer c.wg.Done()

			for job := range c.jobs {
				job()
			}
		}()
	}

	return c, nil
}

// Close stops accepting new work, waits for in-flight queries to finish,
// then closes the pool.
func (c *Client) Close() error {
	close(c.jobs)
	c.wg.Wait()

	return c.db.Close()
}

// Exec submits q for execution on a worker goroutine and calls onComplete
// with the result when it finishes.
func (c *Client) Exec(q Query, onComplete func(*Result, error)) {
	c.jobs <- func() {
		res, err := c.run(q)
		onComplete(res, err)
	}
}

func (c *Client) transition(q Query, s QueryState) {
	if q.OnTransition != nil {
		q.OnTransition(s)
	}
}

func (c *Client) run(q Query) (*Result, error) {
	c.transition(q, StateInit)
	c.transition(q, StateConnecting)

	connect := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnTimeout)
		defer cancel()

		return c.db.PingContext(ctx)
	}

	var connErr error
	if c.cfg.Retry {
		connErr = retry.DoWithConfig(context.Background(), retry.DBConfig(), connect)
	} else {
		connErr = connect()
	}

	if connErr != nil {
		c.transition(q, StateError)

		return nil, fmt.Errorf("asyncdb: connect: %w", connErr)
	}

	c.transition(q, StateQuerying)

	if !returnsRows(q.SQL) {
		res, err := c.db.Exec(q.SQL, q.Args...)
		if err != nil {
			c.transition(q, StateError)

			return nil, fmt.Errorf("asyncdb: exec: %w", err)
		}

		c.transition(q, StateStoringResult)

		affected, err := res.RowsAffected()
		if err != nil {
			c.transition(q, StateError)

			return nil, fmt.Errorf("asyncdb: rows affected: %w", err)
		}

		c.transition(q, StateFinished)

		return &Result{AffectedRows: affected}, nil
	}

	rows, err := c.db.Query(q.SQL, q.Args...)
	if err != nil {
		c.transition(q, StateError)

		return nil, fmt.Errorf("asyncdb: query: %w", err)
	}
	defer rows.Close()

	c.transition(q, StateStoringResult)

	cols, err := rows.Columns()
	if err != nil {
		c.transition(q, StateError)

		return nil, fmt.Errorf("asyncdb: columns: %w", err)
	}

	c.transition(q, StateFetchingRows)

	result := &Result{Columns: cols}

	for rows.Next() {
		raw := make([]sql.RawBytes, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			c.transition(q, StateError)

			return nil, fmt.Errorf("asyncdb: scan: %w", err)
		}

		cells := make([][]byte, len(cols))
		for i, r := range raw {
			if r == nil {
				cells[i] = nil

				continue
			}

			cells[i] = append([]byte(nil), r...)
		}

		result.Rows = append(result.Rows, Row{Cells: cells})
	}

	if err := rows.Err(); err != nil {
		c.transition(q, StateError)

		return nil, fmt.Errorf("asyncdb: row iteration: %w", err)
	}

	c.transition(q, StateFinished)

	return result, nil
}

// returnsRows reports whether sql is expected to produce a result set, as
// opposed to a statement that only affects rows (INSERT/UPDATE/DELETE/DDL).
// Statements of the latter kind are run via db.Exec so AffectedRows can be
// captured from sql.Result.
func returnsRows(statement string) bool {
	trimmed := strings.TrimLeft(statement, " \t\r\n(")
	firstWord, _, _ := strings.Cut(trimmed, " ")
	firstWord = strings.ToUpper(firstWord)

	switch firstWord {
	case "SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH":
		return true
	default:
		return false
	}
}
