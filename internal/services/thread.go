package services

import (
	"strings"

	"github.com/google/uuid"
)

// ThreadDomain is the right-hand side of every Message-ID this system mints.
const ThreadDomain = "placement-pitcher.mail"

// NewThreadID mints a globally unique RFC 5322 Message-ID.
func NewThreadID() string {
	return "<" + uuid.NewString() + "@" + ThreadDomain + ">"
}

// ThreadHeaders carries the identity headers for one outbound message.
// InReplyTo and References are empty on the first message of a thread.
type ThreadHeaders struct {
	MessageID  string
	InReplyTo  string
	References string
}

// NewThreadHeaders mints headers for a message continuing the thread whose
// last outbound Message-ID is prior. An empty prior starts a fresh thread.
func NewThreadHeaders(prior string) ThreadHeaders {
	h := ThreadHeaders{MessageID: NewThreadID()}
	if prior = strings.TrimSpace(prior); prior != "" {
		h.InReplyTo = prior
		h.References = prior
	}
	return h
}
