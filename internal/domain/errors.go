package domain

import "errors"

// Orchestration error taxonomy. Handlers map these onto HTTP statuses and
// the orchestrator uses them to decide whether a trigger may be retried.
var (
	// ErrNotFound indicates a session, listing, or message that does not
	// exist or does not belong to the caller.
	ErrNotFound = errors.New("not found")

	// ErrAgentUnavailable indicates the external reasoning service could not
	// be reached (network, timeout, provider failure). No state has been
	// mutated; re-issuing the same trigger is safe.
	ErrAgentUnavailable = errors.New("agent unavailable")

	// ErrMalformedAgentResponse indicates the reasoning service returned
	// output that does not fit the action contract. No state has been
	// mutated; retrying the same trigger as-is will not help.
	ErrMalformedAgentResponse = errors.New("malformed agent response")

	// ErrStaleContext indicates persisted state changed between context
	// build and commit; the action batch was discarded and the caller
	// should retry with fresh state.
	ErrStaleContext = errors.New("stale session context")

	// ErrSessionClosed indicates an attempt to converse in a closed
	// session. CLOSED is terminal.
	ErrSessionClosed = errors.New("session closed")

	// ErrClarificationPending indicates a trigger that cannot run while the
	// session is blocked on a clarification. Only a direct answer (or a
	// listing edit that resolves the question) unblocks the session.
	ErrClarificationPending = errors.New("clarification pending")
)
