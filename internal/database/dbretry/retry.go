package dbretry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun/driver/pgdriver"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

var (
	maxElapsedTime  = 10 * time.Second
	initialInterval = 50 * time.Millisecond
	maxInterval     = 2 * time.Second
	maxRetries      = uint64(5)
)

// IsRetryableError checks if the given error is retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors belong to the caller and must not be retried
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	// SQLite reports writer contention as busy or locked
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}

		return false
	}

	// PostgreSQL connection, serialization and resource errors
	var pgerr *pgdriver.Error
	if errors.As(err, &pgerr) {
		switch pgerr.Field('C') {
		case "08000", // connection_exception
			"08003", // connection_does_not_exist
			"08006", // connection_failure
			"08001", // sqlclient_unable_to_establish_sqlconnection
			"08004", // sqlserver_rejected_establishment_of_sqlconnection
			"40001", // serialization_failure
			"40P01", // deadlock_detected
			"53300", // too_many_connections
			"57P01", // admin_shutdown
			"57P03", // cannot_connect_now
			"55P03": // lock_not_available
			return true
		}

		return false
	}

	// Check for common network error strings
	errMsg := err.Error()
	if strings.Contains(errMsg, "connection reset by peer") ||
		strings.Contains(errMsg, "broken pipe") ||
		strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "i/o timeout") ||
		strings.Contains(errMsg, "database is locked") {
		return true
	}

	return false
}

// newBackOff builds the retry policy shared by all operations.
func newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxElapsedTime),
		backoff.WithInitialInterval(initialInterval),
		backoff.WithMaxInterval(maxInterval),
	), maxRetries)

	return backoff.WithContext(b, ctx)
}

// Operation wraps a database operation with retry logic.
func Operation[T any](ctx context.Context, operation func(context.Context) (T, error)) (T, error) {
	var result T
	var lastErr error

	err := backoff.Retry(func() error {
		var err error
		result, err = operation(ctx)
		if err != nil {
			if !IsRetryableError(err) {
				// If error is not retryable, return it wrapped to stop retrying
				return backoff.Permanent(err)
			}
			lastErr = err
			return err
		}
		return nil
	}, newBackOff(ctx))
	if err != nil {
		if lastErr != nil && !errors.Is(err, lastErr) {
			return result, fmt.Errorf("database operation failed after retries: %w", lastErr)
		}
		return result, err
	}

	return result, nil
}

// NoResult wraps a database operation that doesn't return a result.
func NoResult(ctx context.Context, operation func(context.Context) error) error {
	_, err := Operation(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})

	return err
}
