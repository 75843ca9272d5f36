// Package sandbox runs validated user code in an isolated environment.
//
// The Supervisor turns a prepared unit into one or two Steps (build, then
// run) from the per-language command templates and hands each Step to an
// Executor with its own deadline. Executors implement the isolation:
//
//   - DockerExecutor drives the Docker Engine API directly
//   - CLIExecutor shells out to the docker or podman CLI
//   - LocalExecutor runs on the host in a process jail (development only)
//
// Every container an executor creates is registered with the request's
// janitor scope before it starts, so it is destroyed on every exit path.
// On deadline expiry the running container or process group is killed
// before Run returns.
//
// Usage:
//
//	executor, err := sandbox.NewExecutor(cfg, process.RealRunner{}, logger)
//	supervisor := sandbox.NewSupervisor(cfg, executor, logger)
//	result, err := supervisor.Execute(ctx, scope, unit, "c++17", sandbox.RunOptions{
//	    Build: 30 * time.Second,
//	    Run:   10 * time.Second,
//	})
package sandbox
