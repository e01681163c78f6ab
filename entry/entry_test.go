package entry

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntry_IndexKeyRoundTrips(t *testing.T) {
	e := New([]byte("hello"), 42)
	require.Equal(t, 42, e.Value)
	require.Equal(t, []byte("hello"), e.Key())

	ik := e.IndexKey()
	require.Len(t, ik, 4+5)
	require.Equal(t, []byte("hello"), ik[4:])
}

// No key's IndexKey may be a byte-prefix of another's, even when one raw
// key is a prefix of the other -- this is the whole point of the length
// prefix.
func TestEntry_IndexKeyNeverPrefixOfAnother(t *testing.T) {
	short := New([]byte("ab"), nil).IndexKey()
	long := New([]byte("abc"), nil).IndexKey()

	require.False(t, bytes.HasPrefix(long, short), "long IndexKey must not have short IndexKey as a prefix")
	require.False(t, bytes.HasPrefix(short, long), "short IndexKey must not have long IndexKey as a prefix")
}

func TestEntry_EmptyKey(t *testing.T) {
	e := New(nil, "v")
	require.Empty(t, e.Key())
	require.Len(t, e.IndexKey(), 4)
}
