//go:build !unix

package decompiler

import "os/exec"

// setProcessGroup keeps the default cancellation; WaitDelay still
// bounds how long leftover children can hold the pipes.
func setProcessGroup(cmd *exec.Cmd) {}
