package install

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLayout = Layout{ClientDir: "Logic_World_Data/Managed", ServerDir: "Server"}

func makeInstall(t *testing.T, client, server bool) string {
	t.Helper()
	root := t.TempDir()
	if client {
		require.NoError(t, os.MkdirAll(testLayout.ClientPath(root), 0o755))
	}
	if server {
		require.NoError(t, os.MkdirAll(testLayout.ServerPath(root), 0o755))
	}
	return root
}

func TestLayoutCheckReportsFirstFailure(t *testing.T) {
	assert.Equal(t, ProblemEmpty, testLayout.Check("  ").Problem)
	assert.Equal(t, ProblemMissingRoot, testLayout.Check(filepath.Join(t.TempDir(), "nope")).Problem)

	noClient := makeInstall(t, false, true)
	check := testLayout.Check(noClient)
	assert.Equal(t, ProblemMissingClient, check.Problem)
	assert.Contains(t, check.Message(), "Client DLL folder missing")

	noServer := makeInstall(t, true, false)
	check = testLayout.Check(noServer)
	assert.Equal(t, ProblemMissingServer, check.Problem)
	assert.Contains(t, check.Message(), "Server DLL folder missing")

	assert.True(t, testLayout.Check(makeInstall(t, true, true)).OK())
}

func TestResolveFreshCacheWritesOnce(t *testing.T) {
	valid := makeInstall(t, true, true)
	store := NewMemoryStore()
	var out bytes.Buffer
	var reasons []string

	r := &Resolver{
		Store:  store,
		Key:    ".gamepath",
		Layout: testLayout,
		Out:    &out,
		Supplier: SupplierFunc(func(_ context.Context, reason string) (string, error) {
			reasons = append(reasons, reason)
			return "  " + valid + "\n", nil
		}),
	}

	got, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, valid, got)
	assert.Equal(t, 1, store.Writes)

	saved, ok, err := store.Load(".gamepath")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, valid, saved)
	assert.Equal(t, []string{"No install path configured."}, reasons)
	assert.Contains(t, out.String(), "No install path configured.")
}

func TestResolveCachedValidPathWritesNothing(t *testing.T) {
	valid := makeInstall(t, true, true)
	store := NewMemoryStore()
	require.NoError(t, store.Save("k", valid))
	store.Writes = 0

	r := &Resolver{
		Store:  store,
		Key:    "k",
		Layout: testLayout,
		Supplier: SupplierFunc(func(context.Context, string) (string, error) {
			t.Fatal("supplier must not be called for a valid cached path")
			return "", nil
		}),
	}
	got, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, valid, got)
	assert.Equal(t, 0, store.Writes)
}

func TestResolveLoopsUntilValid(t *testing.T) {
	missingServer := makeInstall(t, true, false)
	valid := makeInstall(t, true, true)
	answers := []string{"", missingServer, valid}
	var reasons []string

	store := NewMemoryStore()
	r := &Resolver{
		Store:  store,
		Key:    "k",
		Layout: testLayout,
		Supplier: SupplierFunc(func(_ context.Context, reason string) (string, error) {
			reasons = append(reasons, reason)
			next := answers[0]
			answers = answers[1:]
			return next, nil
		}),
	}
	got, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, valid, got)
	require.Len(t, reasons, 3)
	assert.Contains(t, reasons[2], "Server DLL folder missing")
	assert.Equal(t, 1, store.Writes)
}

func TestResolveMaxAttempts(t *testing.T) {
	r := &Resolver{
		Store:       NewMemoryStore(),
		Key:         "k",
		Layout:      testLayout,
		Supplier:    FixedSupplier(filepath.Join(t.TempDir(), "missing")),
		MaxAttempts: 2,
	}
	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, ErrAttemptsExhausted)
}

func TestResolveWithoutSupplierFailsFast(t *testing.T) {
	r := &Resolver{Store: NewMemoryStore(), Key: "k", Layout: testLayout}
	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, ErrNoSupplier)
}

func TestResolvePropagatesSupplierError(t *testing.T) {
	boom := errors.New("stdin closed")
	r := &Resolver{
		Store:  NewMemoryStore(),
		Key:    "k",
		Layout: testLayout,
		Supplier: SupplierFunc(func(context.Context, string) (string, error) {
			return "", boom
		}),
	}
	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := FileStore{Dir: t.TempDir()}

	_, ok, err := store.Load(".gamepath")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Save(".gamepath", "/games/lw"))
	v, ok, err := store.Load(".gamepath")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/games/lw", v)

	data, err := os.ReadFile(store.Path(".gamepath"))
	require.NoError(t, err)
	assert.Equal(t, "/games/lw", string(data))
}
