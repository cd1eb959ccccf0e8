// Package mailbody extracts the best available plain-text body from a raw
// RFC 5322 message.
package mailbody

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/utils"
	"go.uber.org/zap"
)

// ErrNoExtractableBody is returned when a message has no text/plain or text/html part
var ErrNoExtractableBody = errors.New("no extractable body")

var errStopWalk = errors.New("stop walk")

// Extractor walks MIME trees. First text/plain wins; otherwise the first
// text/html part is rendered to text.
type Extractor struct {
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewExtractor creates a new body extractor
func NewExtractor(logger *zap.Logger, textProcessor *utils.TextProcessor) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if textProcessor == nil {
		textProcessor = utils.NewTextProcessor(logger)
	}
	return &Extractor{
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Extract implements core.BodyExtractor
func (e *Extractor) Extract(msg *core.RawMessage) (string, error) {
	if msg == nil || len(msg.Literal) == 0 {
		return "", ErrNoExtractableBody
	}
	return e.ExtractBytes(msg.Literal)
}

// ExtractBytes extracts the body of a raw message literal
func (e *Extractor) ExtractBytes(raw []byte) (string, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return "", fmt.Errorf("failed to parse message: %w", err)
	}

	var plain, html string
	var foundHTML bool

	walkErr := entity.Walk(func(path []int, part *message.Entity, partErr error) error {
		if partErr != nil && !message.IsUnknownCharset(partErr) && !message.IsUnknownEncoding(partErr) {
			return partErr
		}

		mediaType, _, _ := part.Header.ContentType()
		if mediaType == "" {
			// RFC 2045 default
			mediaType = "text/plain"
		}
		mediaType = strings.ToLower(mediaType)
		if strings.HasPrefix(mediaType, "multipart/") {
			return nil
		}
		if isAttachment(part) {
			e.logger.Debug("Skipping attachment part", zap.Ints("path", path), zap.String("content_type", mediaType))
			return nil
		}

		switch mediaType {
		case "text/plain":
			text, err := e.readPart(part)
			if err != nil {
				return err
			}
			plain = text
			return errStopWalk
		case "text/html":
			if foundHTML {
				return nil
			}
			text, err := e.readPart(part)
			if err != nil {
				return err
			}
			html = text
			foundHTML = true
		}
		return nil
	})

	if walkErr != nil && !errors.Is(walkErr, errStopWalk) {
		return "", fmt.Errorf("failed to walk message parts: %w", walkErr)
	}

	if strings.TrimSpace(plain) != "" {
		return plain, nil
	}
	if foundHTML {
		if text := HTMLToText(html); text != "" {
			return text, nil
		}
	}
	return "", ErrNoExtractableBody
}

// readPart reads a decoded part body, replacing undecodable bytes
func (e *Extractor) readPart(part *message.Entity) (string, error) {
	data, err := io.ReadAll(part.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read part body: %w", err)
	}
	return e.textProcessor.SanitizeUTF8(string(data)), nil
}

func isAttachment(part *message.Entity) bool {
	disposition, _, err := part.Header.ContentDisposition()
	if err != nil {
		return strings.Contains(strings.ToLower(part.Header.Get("Content-Disposition")), "attachment")
	}
	return strings.EqualFold(disposition, "attachment")
}
