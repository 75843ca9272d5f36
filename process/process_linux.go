//go:build linux

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func configure(cmd *exec.Cmd, isolate bool) error {
	cmd.SysProcAttr = buildSysProcAttr(isolate)
	cmd.Cancel = func() error {
		killGroup(cmd)
		return nil
	}
	return nil
}

func buildSysProcAttr(isolate bool) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if !isolate {
		return attr
	}

	attr.Cloneflags = unix.CLONE_NEWUSER | unix.CLONE_NEWNS | unix.CLONE_NEWPID |
		unix.CLONE_NEWNET | unix.CLONE_NEWIPC | unix.CLONE_NEWUTS
	attr.GidMappingsEnableSetgroups = false
	attr.UidMappings = []syscall.SysProcIDMap{{
		ContainerID: 0,
		HostID:      os.Getuid(),
		Size:        1,
	}}
	attr.GidMappings = []syscall.SysProcIDMap{{
		ContainerID: 0,
		HostID:      os.Getgid(),
		Size:        1,
	}}
	return attr
}

// reap kills whatever is left of the process group after the leader exited
func reap(cmd *exec.Cmd) {
	killGroup(cmd)
}

func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil || cmd.Process.Pid <= 0 {
		return
	}
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		_ = cmd.Process.Kill()
	}
}
