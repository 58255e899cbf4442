package domain

import "errors"

var (
	// ErrFxFetchFailed covers every provider failure mode: unreachable
	// upstream, non-2xx response, or malformed body. Recoverable via the
	// stale-cache fallback.
	ErrFxFetchFailed = errors.New("fx fetch failed")

	// ErrNoRateAvailable means the provider failed and no cached rate exists
	// for the pair at all. Fatal to the whole report.
	ErrNoRateAvailable = errors.New("no fx rate available")

	// ErrPeriodLocked rejects a non-adjustment transaction write dated on or
	// before an account's reconciliation watermark.
	ErrPeriodLocked = errors.New("period locked by reconciliation")

	ErrAccountNotFound   = errors.New("account not found")
	ErrWorkspaceNotFound = errors.New("workspace not found")
)
