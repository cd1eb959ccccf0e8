// Package imapquery composes IMAP SEARCH keys.
//
// A Criteria is an immutable, ordered list of search-key fragments. Every
// method returns a new Criteria, so a shared base such as a date window can be
// branched per bank without one caller observing another's additions.
package imapquery

import (
	"strings"
	"time"
)

// DateLayout is the RFC 3501 date format used by SINCE and BEFORE
const DateLayout = "02-Jan-2006"

// Criteria is an ordered set of IMAP search-key fragments
type Criteria struct {
	fragments []string
}

// New returns an empty Criteria
func New() Criteria {
	return Criteria{}
}

// with copies the fragment list before appending
func (c Criteria) with(fragment string) Criteria {
	next := make([]string, len(c.fragments), len(c.fragments)+1)
	copy(next, c.fragments)
	return Criteria{fragments: append(next, fragment)}
}

// From matches the From header
func (c Criteria) From(addr string) Criteria {
	return c.with("FROM " + Quote(addr))
}

// To matches the To header
func (c Criteria) To(addr string) Criteria {
	return c.with("TO " + Quote(addr))
}

// Cc matches the Cc header
func (c Criteria) Cc(addr string) Criteria {
	return c.with("CC " + Quote(addr))
}

// Subject matches a subject substring. An empty subject adds nothing.
func (c Criteria) Subject(text string) Criteria {
	if strings.TrimSpace(text) == "" {
		return c
	}
	return c.with("SUBJECT " + Quote(text))
}

// Body matches a body substring
func (c Criteria) Body(text string) Criteria {
	return c.with("BODY " + Quote(text))
}

// DateRange matches messages on or after start's day and strictly before end's day
func (c Criteria) DateRange(start, end time.Time) Criteria {
	return c.with("SINCE " + start.Format(DateLayout) + " BEFORE " + end.Format(DateLayout))
}

func (c Criteria) Unseen() Criteria  { return c.with("UNSEEN") }
func (c Criteria) Deleted() Criteria { return c.with("DELETED") }
func (c Criteria) Draft() Criteria   { return c.with("DRAFT") }
func (c Criteria) Flagged() Criteria { return c.with("FLAGGED") }
func (c Criteria) Recent() Criteria  { return c.with("RECENT") }
func (c Criteria) All() Criteria     { return c.with("ALL") }

// And groups fragments, each parenthesized, into one conjunction
func (c Criteria) And(fragments ...string) Criteria {
	if len(fragments) == 0 {
		return c
	}
	parts := make([]string, len(fragments))
	for i, f := range fragments {
		parts[i] = "(" + f + ")"
	}
	return c.with("(" + strings.Join(parts, " ") + ")")
}

// Or wraps fragments as (OR a b)
func (c Criteria) Or(fragments ...string) Criteria {
	if len(fragments) == 0 {
		return c
	}
	return c.with("(OR " + strings.Join(fragments, " ") + ")")
}

// Not negates a fragment
func (c Criteria) Not(fragment string) Criteria {
	return c.with("(NOT " + fragment + ")")
}

// Build joins the fragments into one search string
func (c Criteria) Build() string {
	return strings.Join(c.fragments, " ")
}

// BuildOrAll is Build, seeded with ALL when no filter was added
func (c Criteria) BuildOrAll() string {
	if c.IsEmpty() {
		return "ALL"
	}
	return c.Build()
}

// IsEmpty reports whether no fragment has been added
func (c Criteria) IsEmpty() bool {
	return len(c.fragments) == 0
}

// Fragments returns a copy of the accumulated fragments
func (c Criteria) Fragments() []string {
	out := make([]string, len(c.fragments))
	copy(out, c.fragments)
	return out
}

func (c Criteria) String() string {
	return c.Build()
}

// Quote renders s as an IMAP quoted string
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			b.WriteByte('\\')
		case '\r', '\n':
			continue
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}
