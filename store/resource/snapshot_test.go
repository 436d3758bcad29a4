package resource

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshots.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLatestOnEmptyStoreReturnsNotOK(t *testing.T) {
	store := open(t)
	entries, ok, err := store.Latest()
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, entries)
}

func TestSaveThenLatestRoundTrips(t *testing.T) {
	store := open(t)
	want := []Entry{
		{Path: "/x", Method: "GET", ContentType: "text/plain", AcceptType: "application/xml"},
	}
	require.NoError(t, store.Save("2026-01-01T00:00:00Z", want))

	got, ok, err := store.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestLatestReturnsMostRecentKey(t *testing.T) {
	store := open(t)
	require.NoError(t, store.Save("2026-01-01T00:00:00Z", []Entry{{Path: "/old"}}))
	require.NoError(t, store.Save("2026-06-01T00:00:00Z", []Entry{{Path: "/new"}}))

	got, ok, err := store.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	require.Equal(t, "/new", got[0].Path)
}
