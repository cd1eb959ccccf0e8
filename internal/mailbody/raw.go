package mailbody

import (
	"bytes"
	"fmt"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/mikey/mail-ledger/internal/core"
)

// NewRawMessage builds a RawMessage from a complete RFC 5322 literal, the way
// pushed or on-disk messages arrive
func NewRawMessage(literal []byte) (*core.RawMessage, error) {
	entity, err := message.Read(bytes.NewReader(literal))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("failed to parse message header: %w", err)
	}

	h := mail.Header{Header: entity.Header}
	from, err := h.Text("From")
	if err != nil {
		from = h.Get("From")
	}
	subject, err := h.Subject()
	if err != nil {
		subject = h.Get("Subject")
	}

	return &core.RawMessage{
		From:    from,
		Subject: subject,
		Date:    h.Get("Date"),
		Literal: literal,
	}, nil
}
