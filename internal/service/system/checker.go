// Package system reports whether the host can run local Supabase stacks.
package system

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Daemon is the subset of the Docker client the checker needs.
type Daemon interface {
	Ping(ctx context.Context) error
	ServerVersion(ctx context.Context) (string, error)
}

// CommandRunner executes a command and reports whether it succeeded.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Report summarises host prerequisites.
type Report struct {
	Docker             bool              `json:"docker"`
	DockerCompose      bool              `json:"dockerCompose"`
	DockerRunning      bool              `json:"dockerRunning"`
	DockerVersion      string            `json:"dockerVersion,omitempty"`
	InternetConnection bool              `json:"internetConnection"`
	Errors             map[string]string `json:"errors,omitempty"`
	CheckedAt          time.Time         `json:"checkedAt"`
}

// Ready reports whether every prerequisite passed.
func (r Report) Ready() bool {
	return r.Docker && r.DockerCompose && r.DockerRunning && r.InternetConnection
}

// Checker probes the docker toolchain and network connectivity.
type Checker struct {
	daemon   Daemon
	lookPath func(string) (string, error)
	run      CommandRunner
	http     *http.Client
	probeURL string
	timeout  time.Duration
	logger   *slog.Logger
}

// Options configures a Checker. Zero values select the host defaults.
type Options struct {
	LookPath   func(string) (string, error)
	Run        CommandRunner
	HTTPClient *http.Client
	ProbeURL   string
	Timeout    time.Duration
}

// NewChecker constructs a Checker. daemon may be nil when the docker
// client could not be created.
func NewChecker(daemon Daemon, logger *slog.Logger, opts Options) *Checker {
	c := &Checker{
		daemon:   daemon,
		lookPath: opts.LookPath,
		run:      opts.Run,
		http:     opts.HTTPClient,
		probeURL: opts.ProbeURL,
		timeout:  opts.Timeout,
		logger:   logger,
	}
	if c.lookPath == nil {
		c.lookPath = exec.LookPath
	}
	if c.run == nil {
		c.run = runCommand
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.probeURL == "" {
		c.probeURL = "https://www.google.com"
	}
	return c
}

// Check runs every probe concurrently. Individual failures are reported in
// the result rather than returned.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		report = Report{Errors: map[string]string{}}
	)
	fail := func(name string, err error) {
		mu.Lock()
		report.Errors[name] = err.Error()
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := c.lookPath("docker"); err != nil {
			fail("docker", err)
			return nil
		}
		mu.Lock()
		report.Docker = true
		mu.Unlock()
		if err := c.run(gctx, "docker", "compose", "version"); err != nil {
			fail("dockerCompose", err)
			return nil
		}
		mu.Lock()
		report.DockerCompose = true
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		if c.daemon == nil {
			fail("dockerRunning", fmt.Errorf("docker client unavailable"))
			return nil
		}
		if err := c.daemon.Ping(gctx); err != nil {
			fail("dockerRunning", err)
			return nil
		}
		version, err := c.daemon.ServerVersion(gctx)
		mu.Lock()
		report.DockerRunning = true
		if err == nil {
			report.DockerVersion = version
		}
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		if err := c.probe(gctx); err != nil {
			fail("internetConnection", err)
			return nil
		}
		mu.Lock()
		report.InternetConnection = true
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	if len(report.Errors) == 0 {
		report.Errors = nil
	}
	report.CheckedAt = time.Now().UTC()
	c.logger.Debug("system check finished", "ready", report.Ready(), "failures", len(report.Errors))
	return report
}

func (c *Checker) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.probeURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe returned %s", resp.Status)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
	}
	return nil
}
