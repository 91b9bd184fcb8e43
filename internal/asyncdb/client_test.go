package asyncdb

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryStateString(t *testing.T) {
	cases := map[QueryState]string{
		StateInit:          "INIT",
		StateConnecting:    "CONNECTING",
		StateQuerying:      "QUERYING",
		StateStoringResult: "STORING_RESULT",
		StateFetchingRows:  "FETCHING_ROWS",
		StateFinished:      "FINISHED",
		StateError:         "ERROR",
	}

	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestExecRecordsTransitionsThroughConnectFailure(t *testing.T) {
	cfg := DefaultConfig("invalid:invalid@tcp(127.0.0.1:1)/nonexistent")
	cfg.ConnTimeout = 200 * time.Millisecond
	cfg.Workers = 2

	c, err := New(cfg)
	require.NoError(t, err)
	defer c.Close()

	var mu sync.Mutex
	var seen []QueryState

	done := make(chan struct{})

	c.Exec(Query{
		SQL: "SELECT 1",
		OnTransition: func(s QueryState) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		},
	}, func(result *Result, err error) {
		require.Error(t, err)
		require.Nil(t, result)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("query never completed")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []QueryState{StateInit, StateConnecting, StateError}, seen)
}

func TestReturnsRowsClassifiesStatements(t *testing.T) {
	cases := map[string]bool{
		"SELECT 1":                             true,
		"  select * from users":                true,
		"SHOW TABLES":                          true,
		"DESCRIBE users":                       true,
		"EXPLAIN SELECT 1":                     true,
		"WITH x AS (SELECT 1) SELECT * FROM x": true,
		"INSERT INTO users (name) VALUES (?)":  false,
		"UPDATE users SET name = ?":            false,
		"DELETE FROM users WHERE id = ?":        false,
		"CREATE TABLE t (id INT)":               false,
	}

	for stmt, want := range cases {
		assert.Equalf(t, want, returnsRows(stmt), "statement: %s", stmt)
	}
}

func TestCloseAfterInFlightWorkSucceeds(t *testing.T) {
	cfg := DefaultConfig("invalid:invalid@tcp(127.0.0.1:1)/nonexistent")
	cfg.ConnTimeout = 50 * time.Millisecond
	cfg.Workers = 1

	c, err := New(cfg)
	require.NoError(t, err)

	done := make(chan struct{})
	c.Exec(Query{SQL: "SELECT 1"}, func(result *Result, err error) {
		close(done)
	})
	<-done

	require.NoError(t, c.Close())
}
