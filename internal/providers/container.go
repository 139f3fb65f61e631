package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/container"
	img "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"textsum-eval/internal/log"
)

// textEnv carries the source text into the model container.
const textEnv = "SUMMARY_TEXT"

// ContainerSummarizer runs a local summarization model packaged as an image.
// Each call starts a one-shot container with networking disabled, passes
// the text in SUMMARY_TEXT and takes trimmed stdout as the summary.
// Requires DOCKER_HOST (or the default socket) to reach a daemon.
type ContainerSummarizer struct {
	cli     *client.Client
	Image   string
	Command []string

	mu     sync.Mutex
	pulled bool
}

func NewContainerSummarizer(ctx context.Context, image string, command []string) (*ContainerSummarizer, error) {
	if image == "" {
		return nil, fmt.Errorf("container summarizer: image is required")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("cannot reach docker daemon: %w", err)
	}
	return &ContainerSummarizer{cli: cli, Image: imageRef(image), Command: command}, nil
}

func (c *ContainerSummarizer) Close() error {
	return c.cli.Close()
}

func (c *ContainerSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if err := c.ensureImage(ctx); err != nil {
		return "", err
	}
	stdout, stderr, exitCode, err := c.run(ctx, containerEnv(text))
	if err != nil {
		return "", err
	}
	if exitCode != 0 {
		return "", fmt.Errorf("summarizer exit code=%d\nstderr:\n%s", exitCode, stderr)
	}
	out := strings.TrimSpace(stdout)
	if out == "" {
		return "", fmt.Errorf("summarizer produced no output")
	}
	return out, nil
}

func (c *ContainerSummarizer) ensureImage(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pulled {
		return nil
	}
	if err := pullIfNeeded(ctx, c.cli, c.Image); err != nil {
		return fmt.Errorf("pull %s: %w", c.Image, err)
	}
	c.pulled = true
	return nil
}

func containerEnv(text string) []string {
	return []string{textEnv + "=" + text}
}

// run creates the container, waits for exit, collects demultiplexed logs
// and removes it.
func (c *ContainerSummarizer) run(ctx context.Context, env []string) (stdout, stderr string, exitCode int, err error) {
	create, err := c.cli.ContainerCreate(ctx, &container.Config{
		Image: c.Image,
		Cmd:   c.Command,
		Env:   env,
		Tty:   false,
	}, &container.HostConfig{
		NetworkMode: container.NetworkMode("none"),
		Resources: container.Resources{
			Memory:   2 << 30, // 2 GiB
			NanoCPUs: 2e9,
		},
	}, nil, nil, "")
	if err != nil {
		return "", "", 0, fmt.Errorf("create: %w", err)
	}
	cid := create.ID
	defer func() {
		timeout := 2
		_ = c.cli.ContainerStop(context.Background(), cid, container.StopOptions{Timeout: &timeout})
		if err := c.cli.ContainerRemove(context.Background(), cid, container.RemoveOptions{Force: true}); err != nil {
			log.Warnf("remove summarizer container %s: %v", cid, err)
		}
	}()

	if err := c.cli.ContainerStart(ctx, cid, container.StartOptions{}); err != nil {
		return "", "", 0, fmt.Errorf("start: %w", err)
	}

	statusCh, errCh := c.cli.ContainerWait(ctx, cid, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return "", "", 0, fmt.Errorf("wait: %w", err)
		}
	case st := <-statusCh:
		exitCode = int(st.StatusCode)
	}

	logs, err := c.cli.ContainerLogs(ctx, cid, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", exitCode, fmt.Errorf("logs: %w", err)
	}
	defer logs.Close()
	var outBuf, errBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&outBuf, &errBuf, logs); err != nil {
		return "", "", exitCode, fmt.Errorf("demux logs: %w", err)
	}
	return outBuf.String(), errBuf.String(), exitCode, nil
}

func pullIfNeeded(ctx context.Context, cli *client.Client, image string) error {
	reader, err := cli.ImagePull(ctx, image, img.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// imageRef expands bare names like "summarizer" to a fully qualified
// docker.io reference; anything with a registry, namespace or tag is kept.
func imageRef(image string) string {
	if strings.Contains(image, "/") || strings.Contains(image, ":") {
		return image
	}
	return "docker.io/library/" + image + ":latest"
}
