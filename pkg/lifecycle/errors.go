package lifecycle

import "errors"

var (
	// ErrEvidenceInsufficient marks a type with fewer than NMin instances.
	// Not an operator-facing failure: the type is skipped for this epoch.
	ErrEvidenceInsufficient = errors.New("insufficient evidence")

	// ErrArbiterUnavailable marks a transport-level arbiter failure. The
	// candidate is treated as rejected for this epoch and retried at the
	// next scheduled scan.
	ErrArbiterUnavailable = errors.New("arbiter unavailable")

	// ErrArbiterTimeout marks an arbiter call that exceeded its deadline.
	ErrArbiterTimeout = errors.New("arbiter timeout")

	// ErrArbiterMalformed marks an arbiter response that could not be parsed
	// or validated, even after repair. Logged distinctly from timeouts so
	// response-format regressions stay visible.
	ErrArbiterMalformed = errors.New("arbiter response malformed")

	// ErrCommitConflict marks a commit that lost the single-writer race: the
	// registry advanced past its parent version. The store's version-conflict
	// error wraps this; the controller re-screens the candidate.
	ErrCommitConflict = errors.New("commit conflict")

	// ErrStoreWrite marks a failed atomic commit. The registry and all
	// instance assignments remain exactly as before the attempt.
	ErrStoreWrite = errors.New("store write failure")

	// ErrInvariantViolation marks corrupted registry state (an active
	// instance referencing a superseded type, a trail mutated without a
	// commit record). Fatal for the current epoch's remaining cascade work.
	ErrInvariantViolation = errors.New("registry invariant violation")
)
