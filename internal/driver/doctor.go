package driver

import (
	"strings"

	"lwdecomp/internal/decompiler"
	"lwdecomp/internal/install"
	"lwdecomp/internal/runstore"
)

type DoctorOptions struct {
	EngineCommand string
	Store         install.Store
	CacheKey      string
	Layout        install.Layout
	// OutputRoot is checked for writability when set.
	OutputRoot string
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Doctor runs preflight checks without touching any output tree. A
// missing cached install path passes since the next run will ask for one.
func Doctor(opts DoctorOptions) DoctorResult {
	checks := make([]DoctorCheck, 0, 3)

	dep := decompiler.DependencyStatus(opts.EngineCommand)
	checks = append(checks, DoctorCheck{
		Name:    "dependency:" + opts.EngineCommand,
		OK:      dep.Found,
		Message: dependencyMessage(dep),
	})

	if opts.Store != nil {
		checks = append(checks, cachedPathCheck(opts))
	}

	if root := strings.TrimSpace(opts.OutputRoot); root != "" {
		ok, msg := runstore.EnsureWritableDir(root)
		checks = append(checks, DoctorCheck{Name: "directory:output", OK: ok, Message: msg})
	}

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return DoctorResult{OK: ok, Checks: checks}
}

func cachedPathCheck(opts DoctorOptions) DoctorCheck {
	const name = "install:cached-path"
	cached, found, err := opts.Store.Load(opts.CacheKey)
	if err != nil {
		return DoctorCheck{Name: name, OK: false, Message: err.Error()}
	}
	if !found || strings.TrimSpace(cached) == "" {
		return DoctorCheck{Name: name, OK: true, Message: "no cached install path; you will be asked for one"}
	}
	check := opts.Layout.Check(cached)
	if !check.OK() {
		return DoctorCheck{Name: name, OK: false, Message: check.Message()}
	}
	return DoctorCheck{Name: name, OK: true, Message: cached}
}

func dependencyMessage(dep decompiler.DependencyReport) string {
	if strings.TrimSpace(dep.Command) == "" {
		return "decompiler command is not configured"
	}
	if dep.Found {
		return dep.Path
	}
	return "not found on PATH"
}
