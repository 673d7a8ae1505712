package db

import (
	"context"
	"database/sql"
	"time"
)

type DBTask struct {
	Ctx  context.Context
	Exec func(context.Context, *sql.DB) (interface{}, error)
	Resp chan DBResult
}

type DBResult struct {
	Data interface{}
	Err  error
}

// DBQueue funnels all sqlite access through a single worker goroutine.
type DBQueue struct {
	tasks      chan DBTask
	db         *sql.DB
	maxRetry   int
	retryDelay time.Duration
}

const (
	queueCapacity   = 100
	queueMaxRetries = 3
)

// NewDBQueue retries transient failures with a linear 100ms, 200ms backoff.
func NewDBQueue(db *sql.DB) *DBQueue {
	return newDBQueue(db, 100*time.Millisecond)
}

// NewDBQueueForTest keeps the retry policy but shrinks the backoff step.
func NewDBQueueForTest(db *sql.DB) *DBQueue {
	return newDBQueue(db, time.Millisecond)
}

func newDBQueue(db *sql.DB, retryDelay time.Duration) *DBQueue {
	q := &DBQueue{
		tasks:      make(chan DBTask, queueCapacity),
		db:         db,
		maxRetry:   queueMaxRetries,
		retryDelay: retryDelay,
	}
	go q.worker()
	return q
}

func (q *DBQueue) Execute(ctx context.Context, task func(context.Context, *sql.DB) (interface{}, error)) (interface{}, error) {
	resp := make(chan DBResult, 1)
	select {
	case q.tasks <- DBTask{Ctx: ctx, Exec: task, Resp: resp}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-resp:
		return result.Data, result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *DBQueue) worker() {
	for task := range q.tasks {
		result := q.executeWithRetry(task)
		task.Resp <- result
	}
}

func (q *DBQueue) executeWithRetry(task DBTask) DBResult {
	var lastErr error
	for attempt := 0; attempt < q.maxRetry; attempt++ {
		if err := task.Ctx.Err(); err != nil {
			return DBResult{Err: err}
		}
		data, err := task.Exec(task.Ctx, q.db)
		if err == nil {
			return DBResult{Data: data, Err: nil}
		}
		if isPermanent(err) {
			return DBResult{Err: err}
		}
		lastErr = err
		if attempt < q.maxRetry-1 { // Don't sleep after the last attempt
			time.Sleep(time.Duration(attempt+1) * q.retryDelay)
		}
	}
	return DBResult{Err: lastErr}
}

func (q *DBQueue) Close() {
	close(q.tasks)
}

func (q *DBQueue) DB() *sql.DB {
	return q.db
}
