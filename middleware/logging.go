package middleware

import (
	"context"
	"time"

	"github.com/latticedb/lattice/logger"
	"github.com/latticedb/lattice/storeapi"
)

// Logging builds a level-scoped middleware that logs every Query/Mutate
// call's table, index, and duration at Debug level, adapted from the
// teacher's DBLogger.LogSQL/LogCommand (base/db_logger.go) — there it logs
// a formatted SQL string and its args; here there is no SQL string, so it
// logs the structured request shape instead.
func Logging(log logger.Logger, level int) Middleware {
	return Middleware{
		Stack: "dbcore",
		Name:  "logging",
		Level: level,
		Create: func(down storeapi.Store) storeapi.Store {
			return &loggingStore{Passthrough: Passthrough{down}, log: log}
		},
	}
}

type loggingStore struct {
	Passthrough
	log logger.Logger
}

func (s *loggingStore) Begin(ctx context.Context, tables []string, writable bool, durability storeapi.Durability) (storeapi.Tx, error) {
	tx, err := s.Passthrough.Begin(ctx, tables, writable, durability)
	if err != nil {
		return nil, err
	}
	return &loggingTx{TxPassthrough: TxPassthrough{tx}, log: s.log}, nil
}

type loggingTx struct {
	TxPassthrough
	log logger.Logger
}

func (t *loggingTx) Query(ctx context.Context, req storeapi.QueryRequest) (storeapi.QueryResult, error) {
	start := time.Now()
	res, err := t.TxPassthrough.Query(ctx, req)
	t.log.Debug("query table=%s index=%q reverse=%v (%v)", req.Table, req.Index, req.Reverse, time.Since(start))
	return res, err
}

func (t *loggingTx) Mutate(ctx context.Context, req storeapi.MutateRequest) (storeapi.MutateResult, error) {
	start := time.Now()
	res, err := t.TxPassthrough.Mutate(ctx, req)
	t.log.Debug("mutate table=%s kind=%d n=%d (%v)", req.Table, req.Kind, len(req.Values)+len(req.Keys), time.Since(start))
	return res, err
}
