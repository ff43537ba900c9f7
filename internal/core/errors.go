package core

import (
	"errors"
)

// Error taxonomy for external collaborators. Every external-call failure is
// caught at its call site, logged with the acting user/group, and replaced by
// the fail-safe default; none of these propagate into state machine or
// pipeline control flow.
var (
	// ErrStoreUnavailable indicates a persistent store query or commit failure.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrClassifier indicates a classifier timeout or unparseable verdict.
	// The pipeline treats it as not-spam.
	ErrClassifier = errors.New("classifier error")

	// ErrBanLookup indicates a ban-list lookup failure, treated as "not listed".
	ErrBanLookup = errors.New("ban-list lookup error")

	// ErrConsistency indicates the cache and a fresh store query disagree.
	// Logged, never fatal.
	ErrConsistency = errors.New("consistency violation")

	// ErrNotFound is returned by point lookups when no entry exists for the key.
	ErrNotFound = errors.New("entry not found")
)
