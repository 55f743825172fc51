// Package mail defines the outbound message port used for confirmation
// codes and password reset links, plus the SMTP implementation under
// mail/smtp. A nil or absent Sender leaves delivery to the caller.
package mail

import (
	"context"
	"errors"
)

// ErrSendFailed wraps any transport-level delivery failure.
var ErrSendFailed = errors.New("mail: send failed")

// Message is one outbound email. TextBody is required; HTMLBody is an
// optional alternative part.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
