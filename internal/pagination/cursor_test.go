package pagination

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_EncodeDecode(t *testing.T) {
	c := Cursor{Page: 3, PageSize: 20}
	encoded := c.Encode()

	raw, err := base64.URLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"page":3,"page_size":20}`, string(raw))

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
	assert.Equal(t, 40, decoded.Offset())
}

func TestDecode_Invalid(t *testing.T) {
	for _, s := range []string{
		"not base64!",
		base64.URLEncoding.EncodeToString([]byte("not json")),
		Cursor{Page: 0, PageSize: 10}.Encode(),
		Cursor{Page: 1, PageSize: 0}.Encode(),
		Cursor{Page: 1, PageSize: MaxPageSize + 1}.Encode(),
	} {
		_, err := Decode(s)
		assert.ErrorIs(t, err, ErrInvalidCursor, s)
	}
}

func TestFirst_ClampsPageSize(t *testing.T) {
	assert.Equal(t, Cursor{Page: 1, PageSize: DefaultPageSize}, First(0))
	assert.Equal(t, Cursor{Page: 1, PageSize: MaxPageSize}, First(10000))
	assert.Equal(t, Cursor{Page: 1, PageSize: 7}, First(7))
}

func TestCursor_MetaFor(t *testing.T) {
	first := First(10)
	m := first.MetaFor(true)
	assert.Equal(t, 1, m.CurrentPage)
	assert.Empty(t, m.PrevCursor)

	next, err := Decode(m.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, Cursor{Page: 2, PageSize: 10}, next)

	last := next.MetaFor(false)
	assert.Empty(t, last.NextCursor)
	prev, err := Decode(last.PrevCursor)
	require.NoError(t, err)
	assert.Equal(t, first, prev)
}
