// Package intake receives forwarded bank notifications over SMTP.
package intake

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/mailbody"
	"github.com/mikey/mail-ledger/internal/whitelist"
	"go.uber.org/zap"
)

// Processor ingests one pushed message
type Processor interface {
	ProcessRaw(ctx context.Context, msg *core.RawMessage) (*core.Transaction, core.Outcome, error)
}

// Options configures the SMTP listener
type Options struct {
	ListenAddr     string
	Domain         string
	Username       string
	Password       string
	MaxMessageSize int64
	ProcessTimeout time.Duration
}

// SMTPIntake accepts notifications forwarded by allow-listed senders and
// runs each one through the ingestion pipeline. Parse failures are accepted
// and logged, never bounced.
type SMTPIntake struct {
	processor Processor
	whitelist *whitelist.Checker
	logger    *zap.Logger
	opts      Options
	server    *smtp.Server
}

// NewSMTPIntake creates a new SMTP intake
func NewSMTPIntake(processor Processor, checker *whitelist.Checker, logger *zap.Logger, opts Options) *SMTPIntake {
	if opts.Domain == "" {
		opts.Domain = "localhost"
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 10 * 1024 * 1024
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = 30 * time.Second
	}

	in := &SMTPIntake{
		processor: processor,
		whitelist: checker,
		logger:    logger,
		opts:      opts,
	}

	in.server = smtp.NewServer(&smtpBackend{intake: in})
	in.server.Addr = opts.ListenAddr
	in.server.Domain = opts.Domain
	in.server.ReadTimeout = 30 * time.Second
	in.server.WriteTimeout = 30 * time.Second
	in.server.MaxMessageBytes = opts.MaxMessageSize
	in.server.MaxRecipients = 50
	in.server.AllowInsecureAuth = true
	return in
}

// Start listens in the background
func (in *SMTPIntake) Start() error {
	in.logger.Info("SMTP intake starting", zap.String("address", in.opts.ListenAddr))

	go func() {
		if err := in.server.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			in.logger.Error("SMTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Serve accepts connections on l until Stop
func (in *SMTPIntake) Serve(l net.Listener) error {
	return in.server.Serve(l)
}

// Stop closes the listener and every open session
func (in *SMTPIntake) Stop() error {
	return in.server.Close()
}

func (in *SMTPIntake) requiresAuth() bool {
	return in.opts.Username != ""
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	intake *SMTPIntake
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{intake: b.intake, remote: c.Conn().RemoteAddr().String()}, nil
}

// smtpSession implements smtp.Session and smtp.AuthSession
type smtpSession struct {
	intake        *SMTPIntake
	remote        string
	authenticated bool
	sender        string
}

var (
	errAuthRequired = &smtp.SMTPError{
		Code:         530,
		EnhancedCode: smtp.EnhancedCode{5, 7, 0},
		Message:      "Authentication required",
	}
	errSenderNotAllowed = &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 7, 1},
		Message:      "Sender not allowed",
	}
	errInvalidCredentials = &smtp.SMTPError{
		Code:         535,
		EnhancedCode: smtp.EnhancedCode{5, 7, 8},
		Message:      "Invalid credentials",
	}
)

func (s *smtpSession) AuthMechanisms() []string {
	if !s.intake.requiresAuth() {
		return nil
	}
	return []string{sasl.Plain}
}

func (s *smtpSession) Auth(mech string) (sasl.Server, error) {
	if mech != sasl.Plain || !s.intake.requiresAuth() {
		return nil, smtp.ErrAuthUnknownMechanism
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != s.intake.opts.Username || password != s.intake.opts.Password {
			s.intake.logger.Warn("SMTP authentication failed",
				zap.String("remote", s.remote),
				zap.String("username", username))
			return errInvalidCredentials
		}
		s.authenticated = true
		return nil
	}), nil
}

// Mail checks the envelope sender against the whitelist
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	if s.intake.requiresAuth() && !s.authenticated {
		return errAuthRequired
	}
	if !s.intake.whitelist.IsEmpty() && !s.intake.whitelist.IsWhitelisted(from) {
		s.intake.logger.Warn("Rejecting sender not on whitelist",
			zap.String("sender", from),
			zap.String("remote", s.remote))
		return errSenderNotAllowed
	}
	s.sender = from
	return nil
}

// Rcpt accepts any recipient; the intake is a sink
func (s *smtpSession) Rcpt(string, *smtp.RcptOptions) error {
	return nil
}

// Data runs the message through the pipeline
func (s *smtpSession) Data(r io.Reader) error {
	literal, err := io.ReadAll(r)
	if err != nil {
		s.intake.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	logger := s.intake.logger.With(zap.String("envelope_sender", s.sender))

	msg, err := mailbody.NewRawMessage(literal)
	if err != nil {
		logger.Warn("Accepted unparseable message", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.intake.opts.ProcessTimeout)
	defer cancel()

	tx, outcome, err := s.intake.processor.ProcessRaw(ctx, msg)
	if err != nil {
		logger.Warn("Accepted message without a transaction",
			zap.String("from", msg.From),
			zap.String("subject", msg.Subject),
			zap.Error(err))
		return nil
	}

	logger.Debug("Processed pushed notification",
		zap.String("id", tx.ID),
		zap.String("bank", string(tx.Bank)),
		zap.Stringer("outcome", outcome))
	return nil
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
}

// Logout ends the session
func (s *smtpSession) Logout() error {
	return nil
}
