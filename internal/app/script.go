package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/joacominatel/sqlzen/internal/database"
	"github.com/joacominatel/sqlzen/internal/statements"
)

// QueryState is the lifecycle state of one statement in a script run.
type QueryState int

const (
	StateIdle QueryState = iota
	StateExecuting
	StateSuccess
	StateError
	StateCancelled
)

func (s QueryState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s QueryState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StatementResult is the outcome of one statement of a script.
type StatementResult struct {
	Statement statements.Statement
	State     QueryState
	Result    *database.QueryResult
	Err       error
	Duration  time.Duration
}

// MarshalJSON encodes the result as one flat object with the error
// rendered to its message.
func (r StatementResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SQL        string                `json:"sql"`
		Line       int                   `json:"line"`
		Column     int                   `json:"column"`
		State      QueryState            `json:"state"`
		Result     *database.QueryResult `json:"result,omitempty"`
		Error      string                `json:"error,omitempty"`
		DurationMS int64                 `json:"durationMs"`
	}{
		SQL:        r.Statement.SQL,
		Line:       r.Statement.Line,
		Column:     r.Statement.Column,
		State:      r.State,
		Result:     r.Result,
		Error:      database.Message(r.Err),
		DurationMS: r.Duration.Milliseconds(),
	})
}

// QueryScript splits script into statements and runs them in order against
// key. After the first failure, or once ctx is done, the remaining statements
// are marked cancelled and not sent. The returned error is the first failure.
func (s *Service) QueryScript(ctx context.Context, key, script string) ([]StatementResult, error) {
	stmts := statements.Find(script)
	results := make([]StatementResult, len(stmts))
	for i, st := range stmts {
		results[i] = StatementResult{Statement: st, State: StateIdle}
	}
	if len(stmts) == 0 {
		return results, nil
	}

	e, err := s.acquire(key)
	if err != nil {
		err = &ErrQuery{Key: key, Query: stmts[0].SQL, Cause: err}
		results[0].State = StateError
		results[0].Err = err
		cancelFrom(results, 1)
		return results, err
	}
	defer e.release()

	for i := range results {
		if err := ctx.Err(); err != nil {
			cancelFrom(results, i)
			return results, err
		}

		r := &results[i]
		r.State = StateExecuting
		start := s.now()
		r.Result, r.Err = s.run(ctx, e, r.Statement.SQL)
		r.Duration = s.now().Sub(start)

		if r.Err != nil {
			r.State = StateError
			cancelFrom(results, i+1)
			return results, r.Err
		}
		r.State = StateSuccess
	}

	return results, nil
}

func cancelFrom(results []StatementResult, i int) {
	for ; i < len(results); i++ {
		results[i].State = StateCancelled
	}
}
