package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lwdecomp/internal/install"
)

func checkByName(t *testing.T, res DoctorResult, name string) DoctorCheck {
	t.Helper()
	for _, c := range res.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not found in %+v", name, res.Checks)
	return DoctorCheck{}
}

func TestDoctorAllChecksPass(t *testing.T) {
	fakeBin := filepath.Join(t.TempDir(), "bin")
	require.NoError(t, os.MkdirAll(fakeBin, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(fakeBin, "fake-ilspy"), []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))

	game := makeGame(t, nil, nil)
	store := install.NewMemoryStore()
	require.NoError(t, store.Save("cache", game))

	res := Doctor(DoctorOptions{
		EngineCommand: "fake-ilspy",
		Store:         store,
		CacheKey:      "cache",
		Layout:        testLayout,
		OutputRoot:    filepath.Join(t.TempDir(), "out"),
	})
	assert.True(t, res.OK, "%+v", res.Checks)
	assert.Len(t, res.Checks, 3)
	assert.Equal(t, game, checkByName(t, res, "install:cached-path").Message)
}

func TestDoctorFlagsMissingEngineAndStaleCache(t *testing.T) {
	store := install.NewMemoryStore()
	require.NoError(t, store.Save("cache", filepath.Join(t.TempDir(), "moved")))

	res := Doctor(DoctorOptions{
		EngineCommand: "definitely-not-installed-decompiler",
		Store:         store,
		CacheKey:      "cache",
		Layout:        testLayout,
	})
	assert.False(t, res.OK)
	assert.False(t, checkByName(t, res, "dependency:definitely-not-installed-decompiler").OK)
	cached := checkByName(t, res, "install:cached-path")
	assert.False(t, cached.OK)
	assert.Contains(t, cached.Message, "Install directory does not exist")
}

func TestDoctorMissingCacheIsNotAFailure(t *testing.T) {
	res := Doctor(DoctorOptions{Store: install.NewMemoryStore(), CacheKey: "cache", Layout: testLayout})
	assert.True(t, checkByName(t, res, "install:cached-path").OK)
}
