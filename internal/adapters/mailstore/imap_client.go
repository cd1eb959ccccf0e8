// Package mailstore implements core.MailStore over IMAP.
package mailstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/commands"
	"github.com/emersion/go-imap/responses"
	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/imapquery"
	"go.uber.org/zap"
)

// Options holds the IMAP connection settings
type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	TLS                bool
	InsecureSkipVerify bool
	Timeout            time.Duration
}

func (o Options) addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// IMAPClient is a single IMAP session. It is not safe to share between runs.
type IMAPClient struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	client  *client.Client
	state   core.MailStoreState
	mailbox string
}

// NewIMAPClient creates a disconnected IMAP mail store
func NewIMAPClient(opts Options, logger *zap.Logger) *IMAPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &IMAPClient{
		opts:   opts,
		logger: logger.With(zap.String("imap_host", opts.Host)),
	}
}

// Connect dials the server and logs in
func (c *IMAPClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != core.StateDisconnected {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dialer := &net.Dialer{Timeout: c.opts.Timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	var cl *client.Client
	var err error
	if c.opts.TLS {
		cl, err = client.DialWithDialerTLS(dialer, c.opts.addr(), &tls.Config{
			ServerName:         c.opts.Host,
			InsecureSkipVerify: c.opts.InsecureSkipVerify,
		})
	} else {
		cl, err = client.DialWithDialer(dialer, c.opts.addr())
	}
	if err != nil {
		return &core.ConnectionError{Op: "dial", Err: err}
	}
	cl.Timeout = c.opts.Timeout
	cl.ErrorLog = zap.NewStdLog(c.logger)

	if err := cl.Login(c.opts.Username, c.opts.Password); err != nil {
		_ = cl.Logout()
		return &core.ConnectionError{Op: "login", Err: err}
	}

	c.client = cl
	c.state = core.StateConnected
	c.logger.Debug("Connected to IMAP server", zap.String("user", c.opts.Username))
	return nil
}

// SelectMailbox opens name read-only so fetches never change flags
func (c *IMAPClient) SelectMailbox(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == core.StateDisconnected {
		return core.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	status, err := c.client.Select(name, true)
	if err != nil {
		if c.lost() {
			return &core.ConnectionError{Op: "select", Err: err}
		}
		return fmt.Errorf("failed to select mailbox %s: %w", name, err)
	}

	c.mailbox = name
	c.state = core.StateMailboxSelected
	c.logger.Debug("Selected mailbox",
		zap.String("mailbox", name),
		zap.Uint32("messages", status.Messages))
	return nil
}

// rawSearch sends the criteria string verbatim after SEARCH
type rawSearch struct {
	query string
}

func (cmd *rawSearch) Command() *imap.Command {
	return &imap.Command{
		Name:      "SEARCH",
		Arguments: []interface{}{imap.RawString(cmd.query)},
	}
}

// Search runs UID SEARCH with the built criteria
func (c *IMAPClient) Search(ctx context.Context, criteria imapquery.Criteria) ([]uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != core.StateMailboxSelected {
		return nil, core.ErrMailboxNotSelected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := criteria.BuildOrAll()
	res := new(responses.Search)
	status, err := c.client.Execute(&commands.Uid{Cmd: &rawSearch{query: query}}, res)
	if err != nil {
		if c.lost() {
			return nil, &core.ConnectionError{Op: "search", Err: err}
		}
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if status.Type != imap.StatusRespOk {
		return nil, &core.SearchFailedError{Status: string(status.Type), Info: status.Info}
	}
	return res.Ids, nil
}

// Fetch retrieves each uid on its own so one bad message cannot sink the batch.
// Only a lost connection aborts.
func (c *IMAPClient) Fetch(ctx context.Context, ids []uint32) ([]*core.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != core.StateMailboxSelected {
		return nil, core.ErrMailboxNotSelected
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, section.FetchItem()}

	out := make([]*core.RawMessage, 0, len(ids))
	for _, uid := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		msg, err := c.fetchOne(uid, items, section)
		if err != nil {
			if c.lost() {
				return out, &core.ConnectionError{Op: "fetch", Err: err}
			}
			c.logger.Warn("Failed to fetch message", zap.Uint32("uid", uid), zap.Error(err))
			continue
		}
		if msg == nil {
			c.logger.Warn("Message vanished before fetch", zap.Uint32("uid", uid))
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (c *IMAPClient) fetchOne(uid uint32, items []imap.FetchItem, section *imap.BodySectionName) (*core.RawMessage, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.client.UidFetch(seqset, items, messages)
	}()

	var result *core.RawMessage
	for m := range messages {
		raw, err := toRawMessage(m, section)
		if err != nil {
			// drain so UidFetch can return
			for range messages {
			}
			<-done
			return nil, err
		}
		result = raw
	}
	if err := <-done; err != nil {
		return nil, err
	}
	return result, nil
}

func toRawMessage(m *imap.Message, section *imap.BodySectionName) (*core.RawMessage, error) {
	literal := m.GetBody(section)
	if literal == nil {
		return nil, fmt.Errorf("server returned no body for uid %d", m.Uid)
	}
	buf, err := io.ReadAll(literal)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of uid %d: %w", m.Uid, err)
	}

	raw := &core.RawMessage{UID: m.Uid, Literal: buf}
	if env := m.Envelope; env != nil {
		raw.Subject = env.Subject
		raw.From = formatAddresses(env.From)
		if !env.Date.IsZero() {
			raw.Date = env.Date.Format(time.RFC1123Z)
		}
	}
	return raw, nil
}

func formatAddresses(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		if a.PersonalName != "" {
			parts = append(parts, fmt.Sprintf("%q <%s>", a.PersonalName, a.Address()))
		} else {
			parts = append(parts, a.Address())
		}
	}
	return strings.Join(parts, ", ")
}

// Disconnect logs out. Calling it twice is harmless.
func (c *IMAPClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == core.StateDisconnected || c.client == nil {
		c.state = core.StateDisconnected
		return nil
	}

	err := c.client.Logout()
	c.client = nil
	c.mailbox = ""
	c.state = core.StateDisconnected
	if err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) {
		c.logger.Debug("Logout returned an error", zap.Error(err))
		return err
	}
	return nil
}

// State reports the session lifecycle state
func (c *IMAPClient) State() core.MailStoreState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// lost reports whether the server side of the session is gone
func (c *IMAPClient) lost() bool {
	return c.client == nil || c.client.State() == imap.LogoutState
}
