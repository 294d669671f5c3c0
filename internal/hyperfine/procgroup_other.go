//go:build !unix

package hyperfine

import "os/exec"

// killGroupOnCancel keeps exec's default: cancellation kills hyperfine only.
func killGroupOnCancel(cmd *exec.Cmd) {}
