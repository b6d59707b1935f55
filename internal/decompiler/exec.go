package decompiler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"go.uber.org/zap"
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"

	LogFileName = "decompile.log"
)

// DefaultManifestTemplate is an SDK-style project that compiles every
// source file the engine wrote next to it.
const DefaultManifestTemplate = `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <AssemblyName>{{.Name}}</AssemblyName>
    <TargetFramework>netstandard2.1</TargetFramework>
    <LangVersion>latest</LangVersion>
    <AllowUnsafeBlocks>true</AllowUnsafeBlocks>
    <GenerateAssemblyInfo>false</GenerateAssemblyInfo>
  </PropertyGroup>
</Project>
`

// ExecEngine shells out to a command-line decompiler. Args may contain
// the placeholders {module}, {output} and {name}.
type ExecEngine struct {
	Command          string
	Args             []string
	ManifestTemplate string
	// Timeout bounds one module. Zero waits forever.
	Timeout time.Duration
	Logger  *zap.Logger

	tmplOnce sync.Once
	tmpl     *template.Template
	tmplErr  error
}

type manifestData struct {
	Module     string
	Name       string
	ModulePath string
	OutputDir  string
}

func (e *ExecEngine) Decompile(ctx context.Context, req Request) error {
	if strings.TrimSpace(e.Command) == "" {
		return errors.New("decompiler command is required")
	}
	if strings.TrimSpace(req.ModulePath) == "" {
		return errors.New("module path is required")
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return errors.New("output directory is required")
	}
	tmpl, err := e.template()
	if err != nil {
		return err
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	logFile, err := os.Create(filepath.Join(req.OutputDir, LogFileName))
	if err != nil {
		return fmt.Errorf("create engine log: %w", err)
	}
	defer func() {
		_ = logFile.Close()
	}()

	args := ExpandArgs(e.Args, req)
	e.logger().Debug("engine start", zap.String("command", e.Command), zap.Strings("args", args))
	if err := runCommand(ctx, e.Command, args, logFile); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s timed out after %s", e.Command, e.Timeout)
		}
		return err
	}

	if req.Manifest == nil {
		return nil
	}
	if err := tmpl.Execute(req.Manifest, manifestData{
		Module:     req.Module,
		Name:       req.Name,
		ModulePath: req.ModulePath,
		OutputDir:  req.OutputDir,
	}); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func (e *ExecEngine) template() (*template.Template, error) {
	e.tmplOnce.Do(func() {
		text := e.ManifestTemplate
		if strings.TrimSpace(text) == "" {
			text = DefaultManifestTemplate
		}
		e.tmpl, e.tmplErr = template.New("manifest").Option("missingkey=error").Parse(text)
		if e.tmplErr != nil {
			e.tmplErr = fmt.Errorf("parse manifest template: %w", e.tmplErr)
		}
	})
	return e.tmpl, e.tmplErr
}

func (e *ExecEngine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// ExpandArgs substitutes request placeholders in every argument.
func ExpandArgs(args []string, req Request) []string {
	r := strings.NewReplacer(
		"{module}", req.ModulePath,
		"{output}", req.OutputDir,
		"{name}", req.Name,
	)
	out := make([]string, 0, len(args))
	for _, a := range args {
		out = append(out, r.Replace(a))
	}
	return out
}

// killGrace is how long Wait lets a cancelled engine's leftover
// children hold the output pipes before closing them.
const killGrace = 2 * time.Second

func runCommand(ctx context.Context, command string, args []string, logWriter io.Writer) error {
	cmd := exec.CommandContext(ctx, command, args...)
	// Engines are often wrappers (dotnet, shell scripts); cancellation
	// must reach the whole process tree.
	setProcessGroup(cmd)
	cmd.WaitDelay = killGrace

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	var outBuf strings.Builder
	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(stream OutputStream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			appendLimited(&outBuf, &errBuf, stream, line)
			if logWriter != nil {
				_, _ = io.WriteString(logWriter, line+"\n")
			}
			mu.Unlock()
		}
		// Overlong lines stop the scanner; keep draining so the engine
		// never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}

	if err := cmd.Start(); err != nil {
		_ = stdoutW.Close()
		_ = stderrW.Close()
		return fmt.Errorf("start %s: %w", command, err)
	}
	wg.Add(2)
	go read(StreamStdout, stdoutR)
	go read(StreamStderr, stderrR)

	waitErr := cmd.Wait()
	_ = stdoutW.Close()
	_ = stderrW.Close()
	wg.Wait()

	if waitErr != nil {
		if errors.Is(waitErr, exec.ErrWaitDelay) && ctx.Err() == nil {
			// The engine exited cleanly but a child kept its output open.
			return nil
		}
		detail := strings.TrimSpace(errBuf.String())
		if detail == "" {
			detail = strings.TrimSpace(outBuf.String())
		}
		if detail == "" {
			return fmt.Errorf("%s failed: %w", command, waitErr)
		}
		return fmt.Errorf("%s failed: %w: %s", command, waitErr, lastLine(detail))
	}
	return nil
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// appendLimited keeps the last maxKeep bytes of a stream, where engines
// print their fatal error.
func appendLimited(outBuf, errBuf *strings.Builder, stream OutputStream, line string) {
	const maxKeep = 8192
	b := outBuf
	if stream == StreamStderr {
		b = errBuf
	}
	b.WriteString(line)
	b.WriteByte('\n')
	if b.Len() > maxKeep {
		tail := b.String()[b.Len()-maxKeep:]
		b.Reset()
		b.WriteString(tail)
	}
}

// lastLine keeps per-job error lines short; the full output is in the
// module's decompile.log.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if t := strings.TrimSpace(lines[i]); t != "" {
			return t
		}
	}
	return s
}
