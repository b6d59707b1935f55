package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lwdecomp/internal/driver"
	"lwdecomp/internal/prompt"
)

type harness struct {
	app    *app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	config string
}

// newHarness wires an app to buffers, a scripted stdin and a config that
// points at the fake engine.
func newHarness(t *testing.T, stdin string) *harness {
	t.Helper()
	installFakeEngine(t)
	cfgPath := filepath.Join(t.TempDir(), "lwdecomp.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("engine:\n  command: fake-ilspy\n"), 0o644))

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &harness{
		app: &app{
			stdin:    strings.NewReader(stdin),
			stdout:   stdout,
			stderr:   stderr,
			logger:   zap.NewNop(),
			prompter: prompt.NewLinePrompter(strings.NewReader(stdin), stdout),
		},
		stdout: stdout,
		stderr: stderr,
		config: cfgPath,
	}
}

func (h *harness) run(args ...string) error {
	return h.app.execute(context.Background(), append([]string{"--config", h.config}, args...))
}

func installFakeEngine(t *testing.T) {
	t.Helper()
	fakeBin := filepath.Join(t.TempDir(), "bin")
	require.NoError(t, os.MkdirAll(fakeBin, 0o755))
	script := `#!/usr/bin/env bash
set -euo pipefail
out="$2"
mod="$3"
case "$(basename "$mod")" in
  Broken.dll) echo "PE file does not contain any managed metadata" >&2; exit 1 ;;
esac
echo "// decompiled $(basename "$mod")" > "$out/Program.cs"
`
	require.NoError(t, os.WriteFile(filepath.Join(fakeBin, "fake-ilspy"), []byte(script), 0o755))
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))
}

func makeGameDir(t *testing.T, server, client []string) string {
	t.Helper()
	game := filepath.Join(t.TempDir(), "Logic World")
	dirs := map[string][]string{
		filepath.Join(game, "Server"):                      server,
		filepath.Join(game, "Logic_World_Data", "Managed"): client,
	}
	for dir, names := range dirs {
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for _, n := range names {
			require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("MZ"), 0o644))
		}
	}
	return game
}

func TestHarnessExplicitArgumentsDecompilesBothBatches(t *testing.T) {
	h := newHarness(t, "")
	game := makeGameDir(t,
		[]string{"LogicWorld.Server.dll", "System.Core.dll"},
		[]string{"LogicWorld.Client.dll", "UnityEngine.CoreModule.dll", "Newtonsoft.Json.Unity.dll"},
	)
	out := t.TempDir()

	require.NoError(t, h.run(game, out))

	assert.FileExists(t, filepath.Join(out, "server", "LogicWorld.Server.dll", "LogicWorld.Server.csproj"))
	assert.FileExists(t, filepath.Join(out, "server", "LogicWorld.Server.dll", "Program.cs"))
	assert.FileExists(t, filepath.Join(out, "client", "LogicWorld.Client.dll", "LogicWorld.Client.csproj"))
	assert.NoDirExists(t, filepath.Join(out, "server", "System.Core.dll"))
	assert.NoDirExists(t, filepath.Join(out, "client", "Newtonsoft.Json.Unity.dll"))

	text := h.stdout.String()
	assert.Contains(t, text, "Decompiling server...")
	assert.Contains(t, text, "Decompiling LogicWorld.Server.dll... done in ")
	assert.Contains(t, text, "Decompiling client...")
	assert.Contains(t, text, "Finished successfully.")
}

func TestHarnessGameDirectoryNamedLikeSubcommand(t *testing.T) {
	parent := t.TempDir()
	game := filepath.Join(parent, "watch")
	require.NoError(t, os.Rename(makeGameDir(t, []string{"Server.dll"}, []string{"Client.dll"}), game))
	out := t.TempDir()
	t.Chdir(parent)

	h := newHarness(t, "")
	require.NoError(t, h.run("./watch", out))
	assert.FileExists(t, filepath.Join(out, "server", "Server.dll", "Server.csproj"))
	assert.Contains(t, h.stdout.String(), "Finished successfully.")

	h = newHarness(t, "")
	require.NoError(t, h.run("--help"))
	assert.Contains(t, h.stdout.String(), "./watch")
}

func TestHarnessPreconditionFailures(t *testing.T) {
	game := makeGameDir(t, nil, nil)
	out := t.TempDir()
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"one arg", []string{game}, driver.UsageMessage},
		{"three args", []string{game, out, out}, driver.UsageMessage},
		{"missing game", []string{filepath.Join(out, "missing"), out}, "Game directory does not exist."},
		{"missing output", []string{game, filepath.Join(out, "missing")}, "Output directory does not exist."},
		{"missing client", []string{out, out}, "Client DLL folder missing."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, "")
			err := h.run(tc.args...)
			require.Error(t, err)
			assert.Equal(t, 1, ExitCode(err))

			var stdout, stderr bytes.Buffer
			PrintError(&stdout, &stderr, err)
			assert.Equal(t, tc.want+"\n", stdout.String())
			assert.Empty(t, stderr.String())
		})
	}
}

func TestHarnessJobFailuresKeepExitZeroUnlessRequested(t *testing.T) {
	game := makeGameDir(t, []string{"Broken.dll", "Good.dll"}, []string{"Client.dll"})
	out := t.TempDir()

	h := newHarness(t, "")
	require.NoError(t, h.run(game, out))
	assert.Contains(t, h.stdout.String(), "Decompiling Broken.dll... error!")
	assert.Contains(t, h.stdout.String(), "PE file does not contain any managed metadata")
	assert.FileExists(t, filepath.Join(out, "server", "Good.dll", "Good.csproj"))

	h = newHarness(t, "")
	err := h.run("--fail-on-job-error", game, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, driver.ErrJobFailures))
	assert.Equal(t, 2, ExitCode(err))
}

func TestHarnessSkipPrefixesFlagOverridesConfig(t *testing.T) {
	game := makeGameDir(t, []string{"System.Core.dll", "Game.Server.dll"}, nil)
	out := t.TempDir()

	h := newHarness(t, "")
	require.NoError(t, h.run("--skip-prefixes", "Game.", game, out))
	assert.DirExists(t, filepath.Join(out, "server", "System.Core.dll"))
	assert.NoDirExists(t, filepath.Join(out, "server", "Game.Server.dll"))
}

func TestHarnessInteractiveModeCachesPathAndConfirms(t *testing.T) {
	game := makeGameDir(t, []string{"Server.dll"}, []string{"Client.dll"})
	cache := filepath.Join(t.TempDir(), ".lwdecomp-gamepath")
	out := filepath.Join(t.TempDir(), "decompiled")

	h := newHarness(t, "  "+game+"  \ny\n")
	require.NoError(t, h.run("--cache-file", cache, "--output", out))

	data, err := os.ReadFile(cache)
	require.NoError(t, err)
	assert.Equal(t, game, string(data))
	assert.Contains(t, h.stdout.String(), "No install path configured.")
	assert.Contains(t, h.stdout.String(), "Finished successfully.")
	assert.FileExists(t, filepath.Join(out, "client", "Client.dll", "Client.csproj"))

	info, err := os.Stat(cache)
	require.NoError(t, err)
	h = newHarness(t, "")
	require.NoError(t, h.run("--cache-file", cache, "--output", out, "--yes"))
	after, err := os.Stat(cache)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime(), "valid cached path is not rewritten")
	assert.NotContains(t, h.stdout.String(), "No install path configured.")
}

func TestHarnessInteractiveDeclineExitsCleanly(t *testing.T) {
	game := makeGameDir(t, []string{"Server.dll"}, nil)
	cache := filepath.Join(t.TempDir(), "cache")
	out := filepath.Join(t.TempDir(), "decompiled")

	h := newHarness(t, game+"\nn\n")
	require.NoError(t, h.run("--cache-file", cache, "--output", out))
	assert.Contains(t, h.stdout.String(), "Cancelled.")
	assert.NoDirExists(t, out)
}

func TestHarnessInteractiveMaxAttempts(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nowhere")
	h := newHarness(t, missing+"\n"+missing+"\n")
	err := h.run("--cache-file", filepath.Join(t.TempDir(), "cache"), "--max-attempts", "1", "--yes")
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, h.stdout.String(), "Install directory does not exist")
}

func TestHarnessJSONOutputAndHistory(t *testing.T) {
	game := makeGameDir(t, []string{"A.dll"}, []string{"B.dll", "Broken.dll"})
	out := t.TempDir()
	db := filepath.Join(t.TempDir(), "audit.db")

	h := newHarness(t, "")
	require.NoError(t, h.run("--json", "--audit-db", db, game, out))
	var res driver.Result
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &res))
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, h.stderr.String(), "Decompiling A.dll")

	h = newHarness(t, "")
	require.NoError(t, h.run("history", "--audit-db", db, "--limit", "2"))
	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "run_finished")
	assert.Contains(t, lines[1], "batch_finished")
}

func TestHarnessDoctorJSON(t *testing.T) {
	h := newHarness(t, "")
	err := h.run("--json", "doctor", "--cache-file", filepath.Join(t.TempDir(), "cache"), "--output", t.TempDir())
	require.NoError(t, err)

	var res driver.DoctorResult
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &res))
	assert.True(t, res.OK)
	names := make([]string, 0, len(res.Checks))
	for _, c := range res.Checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"dependency:fake-ilspy", "install:cached-path", "directory:output"}, names)
}

func TestHarnessSettingsInitAndShow(t *testing.T) {
	h := newHarness(t, "")
	cfgPath := filepath.Join(t.TempDir(), "fresh.yml")
	h.config = cfgPath

	require.NoError(t, h.run("settings", "init"))
	assert.FileExists(t, cfgPath)
	assert.Error(t, h.run("settings", "init"), "refuses to overwrite")

	h.stdout.Reset()
	require.NoError(t, h.run("settings", "show"))
	assert.Contains(t, h.stdout.String(), "module_extension: .dll")
	assert.Contains(t, h.stdout.String(), "command: ilspycmd")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 1, ExitCode(&driver.PreconditionError{Message: driver.UsageMessage}))
	assert.Equal(t, 2, ExitCode(driver.ErrJobFailures))
}

func TestPrintErrorPrefixesFatalErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	PrintError(&stdout, &stderr, errors.New("output directory is locked: /x"))
	assert.Empty(t, stdout.String())
	assert.Equal(t, "error: output directory is locked: /x\n", stderr.String())
}
