package ticket

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flitshare/flit/pkg/blob"
)

func TestRoundTrip(t *testing.T) {
	h := blob.HashOf([]byte("root"))
	tk, err := New([]string{"192.168.1.10:4433", "10.0.0.2:4433"}, h, blob.FormatCollection)
	require.NoError(t, err)

	parsed, err := Parse(tk.String())
	require.NoError(t, err)
	require.Equal(t, tk.Addrs, parsed.Addrs)
	require.Equal(t, tk.Hash, parsed.Hash)
	require.Equal(t, tk.Format, parsed.Format)
}

func TestNewValidation(t *testing.T) {
	h := blob.HashOf([]byte("root"))

	_, err := New(nil, h, blob.FormatRaw)
	require.ErrorIs(t, err, ErrInvalidTicket)

	_, err = New([]string{"no-port"}, h, blob.FormatRaw)
	require.ErrorIs(t, err, ErrInvalidTicket)

	_, err = New([]string{"127.0.0.1:4433"}, blob.Hash{}, blob.FormatRaw)
	require.ErrorIs(t, err, ErrInvalidTicket)
}

func TestParseRejectsMangled(t *testing.T) {
	h := blob.HashOf([]byte("root"))
	tk, err := New([]string{"127.0.0.1:4433"}, h, blob.FormatCollection)
	require.NoError(t, err)
	s := tk.String()

	cases := []string{
		"",
		"blit" + s[4:],
		s[:len(s)-3],
		s + "!!",
	}
	for _, c := range cases {
		_, err := Parse(c)
		require.ErrorIs(t, err, ErrInvalidTicket, "input %q", c)
	}
}

func TestStringIsLowercaseToken(t *testing.T) {
	h := blob.HashOf([]byte("x"))
	tk, err := New([]string{"127.0.0.1:1"}, h, blob.FormatRaw)
	require.NoError(t, err)
	s := tk.String()
	require.Equal(t, s, string([]byte(s)))
	for _, r := range s {
		require.False(t, r >= 'A' && r <= 'Z', "uppercase rune in ticket %q", s)
	}
}
