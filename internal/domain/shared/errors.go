// Package shared contains common domain types, errors, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Conflict errors: the caller must re-fetch current state, never retry blindly.
	ErrConflict         = errors.New("conflicting state")
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Concurrency errors: safe to retry a bounded number of times with backoff.
	ErrLockTimeout            = errors.New("row lock not acquired in time")
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Integrity errors: surfaced for manual reconciliation, never auto-corrected.
	ErrIntegrity = errors.New("integrity violation")

	// Ledger errors
	ErrInsufficientBalance = errors.New("insufficient ticket balance")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "player", "rating", "match", "ledger"
	Op      string // Operation that failed, e.g., "Create", "Finalize"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Player domain errors
var (
	ErrPlayerNotFound      = NewDomainError("player", "Find", ErrNotFound, "player not found")
	ErrPlayerAlreadyExists = NewDomainError("player", "Register", ErrAlreadyExists, "player already registered")
	ErrInvalidDiscordID    = NewDomainError("player", "Validate", ErrInvalidID, "invalid Discord ID")
	ErrPlayerNotActive     = NewDomainError("player", "CheckStatus", ErrInvalidState, "player is not active")
	ErrPlayerIsGhost       = NewDomainError("player", "CheckStatus", ErrInvalidState, "player has left the community")
)

// Event/cluster domain errors
var (
	ErrEventNotFound       = NewDomainError("event", "Find", ErrNotFound, "event not found")
	ErrClusterNotFound     = NewDomainError("event", "FindCluster", ErrNotFound, "cluster not found")
	ErrEventAlreadyExists  = NewDomainError("event", "Create", ErrAlreadyExists, "event already exists in cluster")
	ErrInvalidScoringMode  = NewDomainError("event", "Validate", ErrInvalidInput, "unsupported scoring mode")
	ErrUnsupportedForEvent = NewDomainError("event", "Validate", ErrInvalidInput, "scoring mode not enabled for this event")
	ErrSubmissionNotFound  = NewDomainError("event", "FindSubmission", ErrNotFound, "score submission not found")
	ErrEventLockBusy       = NewDomainError("event", "UpdateStats", ErrLockTimeout, "event row is locked by another writer")
)

// Rating domain errors
var (
	ErrStatsNotFound        = NewDomainError("rating", "FindStats", ErrNotFound, "player event stats not found")
	ErrStatsLockBusy        = NewDomainError("rating", "ApplyResult", ErrLockTimeout, "stats row is locked by another writer")
	ErrInvalidKFactor       = NewDomainError("rating", "Validate", ErrValueOutOfRange, "k-factor must be positive")
	ErrTierWeightsSum       = NewDomainError("rating", "Configure", ErrValidation, "tier weights must sum to 1.0")
	ErrEmptyPopulation      = NewDomainError("rating", "Normalize", ErrInvalidInput, "score population is empty")
	ErrInvalidHistorySource = NewDomainError("rating", "RecordHistory", ErrInvalidInput, "unknown history source")
)

// Match domain errors
var (
	ErrMatchNotFound        = NewDomainError("match", "Find", ErrNotFound, "match not found")
	ErrMatchAlreadyComplete = NewDomainError("match", "Finalize", ErrAlreadyProcessed, "match already completed")
	ErrMatchTerminal        = NewDomainError("match", "Transition", ErrStateTransition, "match is in a terminal state")
	ErrDuplicateMatch       = NewDomainError("match", "Open", ErrConflict, "active match already exists for these participants")
	ErrNotParticipant       = NewDomainError("match", "Confirm", ErrInvalidInput, "player is not a participant of this match")
	ErrProposalNotFound     = NewDomainError("match", "Confirm", ErrNotFound, "no active result proposal")
	ErrProposalExpired      = NewDomainError("match", "Confirm", ErrExpired, "result proposal expired")
	ErrInvalidPlacements    = NewDomainError("match", "Propose", ErrValidation, "placements must form contiguous groups starting at 1")
	ErrParticipantCount     = NewDomainError("match", "Open", ErrValidation, "participant count outside event bounds")
	ErrDuplicateParticipant = NewDomainError("match", "Open", ErrValidation, "participant listed more than once")
	ErrProposalActive       = NewDomainError("match", "Propose", ErrConflict, "match already has an active proposal")
	ErrNotAllConfirmed      = NewDomainError("match", "Finalize", ErrInvalidState, "not every participant has confirmed the result")
	ErrMatchLockBusy        = NewDomainError("match", "Transition", ErrLockTimeout, "match row is locked by another writer")
)

// Ledger domain errors
var (
	ErrLedgerEntryNotFound = NewDomainError("ledger", "Find", ErrNotFound, "ledger entry not found")
	ErrInvalidCursor       = NewDomainError("history", "DecodeCursor", ErrInvalidInput, "malformed pagination cursor")
	ErrFeedOrder           = NewDomainError("history", "List", ErrIntegrity, "feed page violates composite order")
	ErrDebitBelowZero      = NewDomainError("ledger", "Append", ErrInsufficientBalance, "debit would make balance negative")
	ErrLedgerMismatch      = NewDomainError("ledger", "Verify", ErrIntegrity, "cached balance does not match ledger sum")
	ErrZeroAmount          = NewDomainError("ledger", "Validate", ErrInvalidInput, "ledger amount cannot be zero")
	ErrInvalidReason       = NewDomainError("ledger", "Validate", ErrInvalidInput, "unknown ledger reason code")
	ErrBalanceLockBusy     = NewDomainError("ledger", "Append", ErrLockTimeout, "balance row is locked by another writer")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConflict checks if the error is a conflict error (re-fetch, do not retry).
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrStateTransition) ||
		errors.Is(err, ErrAlreadyProcessed)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsIntegrity checks if the error signals a ledger/cache mismatch.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}
