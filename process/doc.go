// Package process runs external commands under a context deadline.
//
// On Linux every command is started in its own process group and the whole
// group is killed when the context ends or the command returns, so no
// descendant outlives the call. Commands may additionally be started in fresh
// user, network, mount, PID, IPC and UTS namespaces.
package process
