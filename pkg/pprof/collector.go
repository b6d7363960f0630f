package pprof

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	httppprof "net/http/pprof"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/graph-analysis/pkg/utils"
)

// Collector profiles the process between Start and Stop.
type Collector struct {
	config *Config
	logger utils.Logger

	mu       sync.Mutex
	running  bool
	stamp    string
	cpuFile  *os.File
	files    []string
	server   *http.Server
	listener net.Listener
}

// NewCollector creates a new Collector.
func NewCollector(cfg *Config, logger utils.Logger) (*Collector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Collector{config: cfg, logger: utils.OrGlobal(logger)}, nil
}

// Config returns the collector's configuration.
func (c *Collector) Config() *Config {
	return c.config
}

// Start begins collection.
func (c *Collector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("collector is already running")
	}

	if c.config.HasProfile(ProfileBlock) {
		runtime.SetBlockProfileRate(1)
	}
	if c.config.HasProfile(ProfileMutex) {
		runtime.SetMutexProfileFraction(1)
	}

	var err error
	switch c.config.Mode {
	case ModeHTTP:
		err = c.startHTTP()
	default:
		err = c.startFile()
	}
	if err != nil {
		return err
	}

	c.running = true
	return nil
}

func (c *Collector) startFile() error {
	if err := os.MkdirAll(c.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	c.stamp = time.Now().Format("20060102-150405")

	if !c.config.HasProfile(ProfileCPU) {
		return nil
	}
	f, err := os.Create(c.path(ProfileCPU))
	if err != nil {
		return fmt.Errorf("failed to create cpu profile: %w", err)
	}
	if c.config.CPURate > 0 {
		runtime.SetCPUProfileRate(c.config.CPURate)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("failed to start cpu profile: %w", err)
	}
	c.cpuFile = f
	return nil
}

func (c *Collector) startHTTP() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", httppprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", httppprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", httppprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", httppprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", httppprof.Trace)

	ln, err := net.Listen("tcp", c.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.config.Addr, err)
	}
	c.listener = ln
	c.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Warn("pprof server stopped: %v", err)
		}
	}()
	c.logger.Info("pprof endpoints at http://%s/debug/pprof/", ln.Addr())
	return nil
}

// Stop ends collection. In file mode every requested profile is written.
func (c *Collector) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false

	if c.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := c.server.Shutdown(ctx)
		c.server, c.listener = nil, nil
		return err
	}

	var errs []error
	if c.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := c.cpuFile.Close(); err != nil {
			errs = append(errs, err)
		} else {
			c.files = append(c.files, c.cpuFile.Name())
		}
		c.cpuFile = nil
	}

	for _, pt := range c.config.Profiles {
		if pt == ProfileCPU {
			continue
		}
		if err := c.writeSnapshot(pt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Collector) writeSnapshot(pt ProfileType) error {
	if pt == ProfileHeap {
		runtime.GC()
	}
	p := pprof.Lookup(string(pt))
	if p == nil {
		return fmt.Errorf("unknown profile: %s", pt)
	}

	f, err := os.Create(c.path(pt))
	if err != nil {
		return fmt.Errorf("failed to create %s profile: %w", pt, err)
	}
	defer f.Close()

	if err := p.WriteTo(f, 0); err != nil {
		return fmt.Errorf("failed to write %s profile: %w", pt, err)
	}
	c.files = append(c.files, f.Name())
	return nil
}

func (c *Collector) path(pt ProfileType) string {
	return filepath.Join(c.config.OutputDir, fmt.Sprintf("%s-%s.pprof", pt, c.stamp))
}

// Files returns the profiles written by Stop.
func (c *Collector) Files() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.files...)
}

// Addr returns the HTTP listen address, empty outside HTTP mode.
func (c *Collector) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

// RunWithPprof runs fn between Start and Stop of a collector. A disabled or
// nil config runs fn directly.
func RunWithPprof(cfg *Config, logger utils.Logger, fn func() error) error {
	if cfg == nil || !cfg.Enabled {
		return fn()
	}

	logger = utils.OrGlobal(logger)
	collector, err := NewCollector(cfg, logger)
	if err != nil {
		return err
	}
	if err := collector.Start(); err != nil {
		return err
	}

	runErr := fn()
	if err := collector.Stop(); err != nil {
		logger.Warn("failed to stop pprof collector: %v", err)
	}
	for _, f := range collector.Files() {
		logger.Info("pprof profile written: %s", f)
	}
	return runErr
}
