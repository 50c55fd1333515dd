package docker

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types"
)

type fakeDaemon struct {
	ping    types.Ping
	pingErr error
	version types.Version
	closed  bool
}

func (f *fakeDaemon) Ping(context.Context) (types.Ping, error) { return f.ping, f.pingErr }

func (f *fakeDaemon) ServerVersion(context.Context) (types.Version, error) { return f.version, nil }

func (f *fakeDaemon) Close() error {
	f.closed = true
	return nil
}

func TestPing(t *testing.T) {
	fake := &fakeDaemon{ping: types.Ping{APIVersion: "1.45"}}
	c := &Client{api: fake}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	fake.ping = types.Ping{}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected error for empty API version")
	}

	boom := errors.New("connection refused")
	fake.pingErr = boom
	if err := c.Ping(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped daemon error, got %v", err)
	}
}

func TestServerVersionAndClose(t *testing.T) {
	fake := &fakeDaemon{version: types.Version{Version: "26.1.1"}}
	c := &Client{api: fake}
	v, err := c.ServerVersion(context.Background())
	if err != nil || v != "26.1.1" {
		t.Fatalf("unexpected version %q (%v)", v, err)
	}
	if err := c.Close(); err != nil || !fake.closed {
		t.Fatalf("expected close to reach the daemon client")
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if err := c.Ping(context.Background()); !errors.Is(err, ErrNoDaemon) {
		t.Fatalf("expected ErrNoDaemon, got %v", err)
	}
	if _, err := c.ServerVersion(context.Background()); !errors.Is(err, ErrNoDaemon) {
		t.Fatalf("expected ErrNoDaemon, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close nil client: %v", err)
	}
}
