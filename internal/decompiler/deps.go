package decompiler

import (
	"fmt"
	"os/exec"
	"strings"
)

type DependencyReport struct {
	Command string `json:"command"`
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
}

func DependencyStatus(command string) DependencyReport {
	report := DependencyReport{Command: command}
	if path, err := exec.LookPath(command); err == nil {
		report.Found = true
		report.Path = path
	}
	return report
}

func CheckDependency(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("decompiler command is not configured")
	}
	if !DependencyStatus(command).Found {
		return fmt.Errorf("missing dependency: %s is not installed or not on PATH", command)
	}
	return nil
}
