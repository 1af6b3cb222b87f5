package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hempwatch/harvester/internal/storage"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a/report.pdf", "application/pdf", []byte("body")))

	got, err := s.Get(ctx, "a/report.pdf")
	require.NoError(t, err)
	require.Equal(t, "body", string(got))
}

func TestGetMissing(t *testing.T) {
	_, err := New().Get(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "obj", "text/plain", []byte("abc")))

	got, err := s.Get(ctx, "obj")
	require.NoError(t, err)
	got[0] = 'z'

	again, err := s.Get(ctx, "obj")
	require.NoError(t, err)
	require.Equal(t, "abc", string(again))
}

func TestExists(t *testing.T) {
	s := New()
	ctx := context.Background()

	ok, err := s.Exists(ctx, "obj")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(ctx, "obj", "text/plain", []byte("x")))
	ok, err = s.Exists(ctx, "obj")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestListSortedByName(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "p/b", "text/plain", []byte("2")))
	require.NoError(t, s.Put(ctx, "p/a", "text/plain", []byte("1")))
	require.NoError(t, s.Put(ctx, "q/c", "text/plain", []byte("3")))

	objects, err := s.List(ctx, "p/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	require.Equal(t, "p/a", objects[0].Name)
	require.Equal(t, "p/b", objects[1].Name)
}
