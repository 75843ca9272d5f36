//go:build !linux

package process

import "os/exec"

func configure(_ *exec.Cmd, isolate bool) error {
	if isolate {
		return ErrIsolationUnsupported
	}
	return nil
}

func reap(_ *exec.Cmd) {}
