package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"

	"github.com/isdmx/codecheck/config"
	"github.com/isdmx/codecheck/janitor"
	"github.com/isdmx/codecheck/process"
)

// stdinFile holds step input for containers; it is redirected into the command
const stdinFile = "stdin.txt"

// tmpfsSize caps the writable /tmp of a container
const tmpfsSize = "rw,nosuid,size=64m"

// DockerAPI is the subset of the Docker Engine client the executor uses
type DockerAPI interface {
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// DockerExecutor implements Executor on the Docker Engine API
type DockerExecutor struct {
	logger *zap.Logger
	config config.SandboxConfig
	api    DockerAPI
}

// DockerExecutorOption defines a functional option for DockerExecutor
type DockerExecutorOption func(*DockerExecutor)

// WithDockerAPI sets the Docker client for DockerExecutor
func WithDockerAPI(api DockerAPI) DockerExecutorOption {
	return func(d *DockerExecutor) {
		d.api = api
	}
}

// NewDockerExecutor creates a DockerExecutor. Without WithDockerAPI it
// connects using the standard DOCKER_* environment.
func NewDockerExecutor(logger *zap.Logger, cfg config.SandboxConfig, opts ...DockerExecutorOption) (*DockerExecutor, error) {
	executor := &DockerExecutor{
		logger: logger,
		config: cfg,
	}
	for _, opt := range opts {
		opt(executor)
	}

	if executor.api == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, fmt.Errorf("failed to create docker client: %w", err)
		}
		executor.api = cli
	}
	return executor, nil
}

// Workdir returns the container mount point of the scope directory
func (*DockerExecutor) Workdir(*janitor.Scope) string {
	return Workspace
}

// Run executes step in a fresh container bound to the scope directory
func (d *DockerExecutor) Run(ctx context.Context, scope *janitor.Scope, step Step) (StepResult, error) {
	if err := d.ensureImage(ctx, step.Image); err != nil {
		return StepResult{}, err
	}

	cmd := step.Args
	if step.Stdin != "" {
		if _, err := scope.WriteFile(stdinFile, step.Stdin); err != nil {
			return StepResult{}, err
		}
		cmd = append([]string{"sh", "-c", `exec "$@" < ` + Workspace + "/" + stdinFile, "sh"}, step.Args...)
	}

	name := containerName(scope, step)
	resp, err := d.api.ContainerCreate(ctx, &container.Config{
		Image:           step.Image,
		Cmd:             cmd,
		Env:             append(envList(step.Env), "HOME=/tmp"),
		WorkingDir:      Workspace,
		User:            containerUser(),
		NetworkDisabled: !d.config.NetworkEnabled,
		Labels:          map[string]string{"codecheck.scope": scope.Token(), "codecheck.step": step.Name},
	}, d.hostConfig(scope), nil, nil, name)
	if err != nil {
		return StepResult{}, fmt.Errorf("failed to create container: %w", err)
	}

	handle := &containerHandle{api: d.api, id: resp.ID}
	if err := scope.TrackHandle(handle); err != nil {
		_ = handle.Destroy(context.WithoutCancel(ctx))
		return StepResult{}, err
	}

	stepCtx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()

	started := time.Now()
	if err := d.api.ContainerStart(stepCtx, resp.ID, container.StartOptions{}); err != nil {
		if stepCtx.Err() == nil {
			return StepResult{}, fmt.Errorf("failed to start container: %w", err)
		}
	}

	result := StepResult{}
	waitCh, errCh := d.api.ContainerWait(stepCtx, resp.ID, container.WaitConditionNotRunning)
	select {
	case status := <-waitCh:
		result.ExitCode = int(status.StatusCode)
		if status.Error != nil && status.Error.Message != "" {
			d.logger.Warn("Container wait reported an error",
				zap.String("container", name), zap.String("error", status.Error.Message))
		}
	case err := <-errCh:
		if stepCtx.Err() == nil {
			d.kill(ctx, handle)
			return StepResult{}, fmt.Errorf("failed to wait for container: %w", err)
		}
		result.TimedOut = true
	case <-stepCtx.Done():
		result.TimedOut = true
	}
	result.Duration = time.Since(started)

	if result.TimedOut {
		d.kill(ctx, handle)
		result.ExitCode = -1
		if err := ctx.Err(); err != nil {
			return result, err
		}
		d.logger.Info("Container exceeded its deadline",
			zap.String("container", name), zap.Duration("timeout", step.Timeout))
	}

	stdout, stderr, err := d.logs(context.WithoutCancel(ctx), resp.ID, step.MaxOutputBytes)
	if err != nil {
		d.logger.Warn("Failed to collect container output", zap.String("container", name), zap.Error(err))
	}
	result.Stdout, result.Stderr = stdout, stderr
	return result, nil
}

func (d *DockerExecutor) hostConfig(scope *janitor.Scope) *container.HostConfig {
	networkMode := container.NetworkMode("none")
	if d.config.NetworkEnabled {
		networkMode = "bridge"
	}

	resources := container.Resources{
		Memory:     int64(d.config.MemoryMB) * 1024 * 1024,
		MemorySwap: int64(d.config.MemoryMB) * 1024 * 1024,
		NanoCPUs:   int64(d.config.CPUs * 1e9),
	}
	if d.config.PidsLimit > 0 {
		pids := int64(d.config.PidsLimit)
		resources.PidsLimit = &pids
	}

	return &container.HostConfig{
		Binds:          []string{scope.Dir() + ":" + Workspace},
		NetworkMode:    networkMode,
		Resources:      resources,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": tmpfsSize},
	}
}

// ensureImage pulls the image when the daemon does not have it yet
func (d *DockerExecutor) ensureImage(ctx context.Context, ref string) error {
	if _, err := d.api.ImageInspect(ctx, ref); err == nil {
		return nil
	} else if !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("failed to inspect image %s: %w", ref, err)
	}

	d.logger.Info("Pulling sandbox image", zap.String("image", ref))
	reader, err := d.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer reader.Close()
	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	return nil
}

func (d *DockerExecutor) logs(ctx context.Context, id string, limit int) (string, string, error) {
	reader, err := d.api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", err
	}
	defer reader.Close()

	stdout := process.NewCappedBuffer(limit)
	stderr := process.NewCappedBuffer(limit)
	if _, err := stdcopy.StdCopy(stdout, stderr, reader); err != nil && !errors.Is(err, io.EOF) {
		return stdout.String(), stderr.String(), err
	}
	return stdout.String(), stderr.String(), nil
}

// kill stops the container immediately; removal happens when the scope is released
func (d *DockerExecutor) kill(ctx context.Context, h *containerHandle) {
	killCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := d.api.ContainerKill(killCtx, h.id, "KILL"); err != nil && !cerrdefs.IsNotFound(err) &&
		!strings.Contains(err.Error(), "is not running") {
		d.logger.Warn("Failed to kill container", zap.String("container", h.id), zap.Error(err))
	}
}

// containerHandle removes a container through the Engine API
type containerHandle struct {
	api DockerAPI
	id  string
}

func (h *containerHandle) ID() string {
	return h.id
}

func (h *containerHandle) Destroy(ctx context.Context) error {
	err := h.api.ContainerRemove(ctx, h.id, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", h.id, err)
	}
	return nil
}

func containerName(scope *janitor.Scope, step Step) string {
	return "codecheck-" + scope.Token() + "-" + step.Name
}
