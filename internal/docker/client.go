package docker

import (
	"context"
	"errors"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

// ErrNoDaemon is returned by a Client that was never connected.
var ErrNoDaemon = errors.New("docker daemon not configured")

// daemonAPI is the slice of the Docker SDK the console needs.
type daemonAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ServerVersion(ctx context.Context) (types.Version, error)
	Close() error
}

// Client answers liveness questions about the local Docker daemon.
type Client struct {
	api daemonAPI
}

// New connects using DOCKER_HOST and friends; host overrides the
// environment when set.
func New(host string) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker client for %q: %w", host, err)
	}
	return &Client{api: api}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return ErrNoDaemon
	}
	ping, err := c.api.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping docker daemon: %w", err)
	}
	if ping.APIVersion == "" {
		return errors.New("ping docker daemon: no API version in response")
	}
	return nil
}

// ServerVersion returns the engine version, e.g. "26.1.1".
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	if c == nil || c.api == nil {
		return "", ErrNoDaemon
	}
	v, err := c.api.ServerVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("docker server version: %w", err)
	}
	return v.Version, nil
}

func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}
