package mailbody

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

func init() {
	message.CharsetReader = CharsetReader
}

// CharsetReader decodes input from the named charset to UTF-8. Undecodable
// bytes become U+FFFD.
func CharsetReader(charset string, input io.Reader) (io.Reader, error) {
	name := strings.ToLower(strings.Trim(strings.TrimSpace(charset), `"`))
	switch name {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return input, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unhandled charset %q: %w", charset, err)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}
