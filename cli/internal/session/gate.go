package session

import (
	"strings"

	"redraft/cli/internal/faults"
)

// gateInput is everything the completion gate looks at once the stream ends.
type gateInput struct {
	canceled  bool
	streamErr error
	text      string
	parsed    int
	eligible  int
	noOp      bool
}

// decide is the completion gate: the sole authority for the ready state. It
// returns nil when the session may expose ready, or the fault describing why
// not. Ready requires a successful call, non-empty text, at least one parsed
// proposal and at least one eligible proposal — or the explicit no-op marker,
// which is a valid empty-but-successful result.
func decide(in gateInput) error {
	switch {
	case in.canceled:
		return faults.Canceled()
	case in.streamErr != nil:
		return faults.Transport(in.streamErr)
	case strings.TrimSpace(in.text) == "":
		return faults.EmptyResponse()
	case in.parsed == 0 && in.noOp:
		return nil
	case in.parsed == 0:
		return faults.ParseFailure("no complete file blocks found")
	case in.eligible == 0:
		return faults.AllBlocked(in.parsed)
	default:
		return nil
	}
}
