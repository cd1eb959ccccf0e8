package parsers

import (
	"fmt"
	"strings"

	"github.com/mikey/mail-ledger/internal/core"
)

// Default notification senders and subject filters
const (
	BACSender        = "notificacion@notificacionesbaccr.com"
	PromericaSender  = "info@promerica.fi.cr"
	PromericaSubject = "Comprobante de"
)

// Entry binds a parser to the senders whose mail it understands
type Entry struct {
	Parser  core.BankParser
	Senders []string
	// Display names accepted when the From address is not in Senders
	Names   []string
	Subject string
}

// Registry dispatches messages to bank parsers by sender
type Registry struct {
	entries   []Entry
	byAddress map[string]core.BankParser
	byName    map[string]core.BankParser
}

// DefaultEntries returns the built-in BAC and Promerica bindings
func DefaultEntries() []Entry {
	return []Entry{
		{
			Parser:  NewBACParser(),
			Senders: []string{BACSender},
			Names:   []string{"BAC Credomatic", "Notificaciones BAC"},
		},
		{
			Parser:  NewPromericaParser(nil),
			Senders: []string{PromericaSender},
			Names:   []string{"Banco Promerica", "Promerica"},
			Subject: PromericaSubject,
		},
	}
}

// NewRegistry builds a registry. A sender claimed by two parsers is an error.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{
		byAddress: make(map[string]core.BankParser),
		byName:    make(map[string]core.BankParser),
	}
	for _, e := range entries {
		if e.Parser == nil {
			return nil, fmt.Errorf("registry entry without parser")
		}
		if len(e.Senders) == 0 {
			return nil, fmt.Errorf("no senders configured for %s", e.Parser.Bank())
		}
		for _, s := range e.Senders {
			addr := strings.ToLower(strings.TrimSpace(s))
			if prev, ok := r.byAddress[addr]; ok {
				return nil, fmt.Errorf("sender %s already registered for %s", addr, prev.Bank())
			}
			r.byAddress[addr] = e.Parser
		}
		for _, n := range e.Names {
			r.byName[strings.ToLower(strings.TrimSpace(n))] = e.Parser
		}
		r.entries = append(r.entries, e)
	}
	return r, nil
}

// NewDefaultRegistry returns a registry over DefaultEntries
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultEntries()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup finds the parser for a From header value
func (r *Registry) Lookup(from string) (core.BankParser, bool) {
	if p, ok := r.byAddress[SenderAddress(from)]; ok {
		return p, true
	}
	if name := senderName(from); name != "" {
		if p, ok := r.byName[strings.ToLower(name)]; ok {
			return p, true
		}
	}
	return nil, false
}

// Parser returns the parser registered for bank
func (r *Registry) Parser(bank core.Bank) (core.BankParser, bool) {
	for _, e := range r.entries {
		if e.Parser.Bank() == bank {
			return e.Parser, true
		}
	}
	return nil, false
}

// Sources lists one search source per registered sender, in registration order
func (r *Registry) Sources() []core.BankSource {
	var sources []core.BankSource
	for _, e := range r.entries {
		for _, s := range e.Senders {
			sources = append(sources, core.BankSource{
				Bank:    e.Parser.Bank(),
				Sender:  strings.ToLower(strings.TrimSpace(s)),
				Subject: e.Subject,
			})
		}
	}
	return sources
}
