// Package apperr defines the sentinel error kinds shared across the gateway
// bot's components. Handlers compare against these with errors.Is so that a
// single switch at the Telegram-facing edge can turn any internal failure
// into the right user-facing reply.
package apperr

import "github.com/go-faster/errors"

// Kind is a comparable sentinel identifying one class of domain failure.
type Kind struct {
	name string
}

func (k Kind) Error() string { return k.name }

var (
	InvalidLink          = Kind{"invalid link"}
	NotAuthorized        = Kind{"not authorized"}
	SubscriptionRequired = Kind{"subscription required"}
	DailyLimitReached    = Kind{"daily limit reached"}
	NoUserSession        = Kind{"no user session"}
	NoUserBot            = Kind{"no user bot client"}
	FileReferenceExpired = Kind{"file reference expired"}
	FloodWait            = Kind{"flood wait"}
	GroupCallNotFound    = Kind{"group call not found"}
	InvalidCiphertext    = Kind{"invalid ciphertext"}
	StoreUnavailable     = Kind{"store unavailable"}
	NotFound             = Kind{"not found"}
	Conflict             = Kind{"conflict"}
	InvalidUnit          = Kind{"invalid duration unit"}
)

// Wrap attaches kind to err as its identity while keeping err's message and
// stack trace, so errors.Is(wrapped, kind) succeeds and the original cause is
// still visible in logs.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: kind, cause: err}
}

// New builds a bare error of the given kind with an additional message.
func New(kind Kind, msg string) error {
	return &wrapped{kind: kind, cause: errors.New(msg)}
}

type wrapped struct {
	kind  Kind
	cause error
}

func (w *wrapped) Error() string { return w.kind.name + ": " + w.cause.Error() }
func (w *wrapped) Unwrap() error { return w.cause }
func (w *wrapped) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == w.kind
}

// Is reports whether err (or any error in its chain) carries kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}
