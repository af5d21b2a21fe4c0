package database

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"jobchat/internal/constants"
	"jobchat/internal/errors"
	"jobchat/internal/retry"
)

var dbBackoff = retry.BackoffConfig{
	InitialDelay: time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond,
	MaxDelay:     time.Duration(constants.DefaultMaxBackoffMs) * time.Millisecond,
	Multiplier:   2.0,
	MaxAttempts:  constants.DefaultDatabaseRetryCount,
	Jitter:       true,
}

// withRetry runs operation, retrying transient SQLite failures such as a
// locked database. The final error is wrapped as a DATABASE_QUERY AppError.
func withRetry(ctx context.Context, operationName string, operation func() error) error {
	err := retry.NewBackoff(dbBackoff).RetryWithPredicate(ctx, operation, isRetryableDBError)
	if err != nil {
		return errors.NewDatabaseError(operationName, err)
	}
	return nil
}

// isRetryableDBError reports whether a database error is worth retrying
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "database is locked"),
		strings.Contains(errStr, "database table is locked"),
		strings.Contains(errStr, "disk I/O error"):
		return true
	default:
		return false
	}
}
