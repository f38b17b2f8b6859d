package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/entrhq/htmlshot/pkg/batch"
	"github.com/entrhq/htmlshot/pkg/browser"
	"github.com/entrhq/htmlshot/pkg/config"
	"github.com/entrhq/htmlshot/pkg/exithook"
	"github.com/entrhq/htmlshot/pkg/logging"
	"github.com/entrhq/htmlshot/pkg/report"
)

// copyToClipboard is replaced in tests
var copyToClipboard = clipboard.WriteAll

type app struct {
	opts    *Options
	cfg     *config.Config
	capture browser.CaptureOptions
	log     *logging.Logger

	stdin          io.Reader
	stdout, stderr io.Writer
	styles         styles

	mu        sync.Mutex
	connected *browser.Browser
}

func newApp(opts *Options, cfg *config.Config, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	capture, err := browser.CaptureOptionsFromConfig(cfg.Capture)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		return nil, err
	}
	return &app{
		opts:    opts,
		cfg:     cfg,
		capture: capture,
		log:     log,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		styles:  newStyles(stdout),
	}, nil
}

// newLogger logs to stderr, or to a per-run file when logging.dir is set.
func newLogger(cfg config.LoggingConfig, stderr io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		return logging.New("htmlshot", stderr, level), nil
	}
	// NewFile falls back to stderr on error and says so
	log, _ := logging.NewFile("htmlshot", cfg.Dir, level)
	return log, nil
}

// main runs the capture with the exit hook installed and returns the exit
// code.
func (a *app) main() int {
	hook := exithook.New(a.cleanup)
	hook.Register()
	defer hook.Stop()
	defer hook.Run()
	defer hook.Recover()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.run(ctx); err != nil {
		a.log.Debugf("run failed: %v", err)
		fmt.Fprintln(a.stderr, a.styles.err.Render("Error: "+err.Error()))
		return 1
	}
	return 0
}

func (a *app) run(ctx context.Context) error {
	b, err := a.open(ctx)
	if err != nil {
		return err
	}
	if a.opts.BatchDir != "" {
		return a.captureBatch(ctx, b)
	}
	return a.captureOne(ctx, b)
}

// open attaches to the -connect browser or launches the shared instance.
func (a *app) open(ctx context.Context) (*browser.Browser, error) {
	opts := []browser.Option{browser.WithLogger(a.log.Named("browser"))}
	if a.opts.Trace {
		opts = append(opts, browser.WithObserver(newTracer(a.stderr).observe))
	}

	if a.opts.Connect != "" {
		b, err := browser.Connect(ctx, a.opts.Connect, a.cfg, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", a.opts.Connect, err)
		}
		a.mu.Lock()
		a.connected = b
		a.mu.Unlock()
		return b, nil
	}

	b, err := browser.Instance(ctx, a.cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	if err := b.CloseInitTab(ctx); err != nil {
		a.log.Warnf("could not close the initial tab: %v", err)
	}
	return b, nil
}

// cleanup closes whatever browser is open and the log. It runs exactly once
// through the exit hook.
func (a *app) cleanup() {
	a.mu.Lock()
	b := a.connected
	a.mu.Unlock()

	if b != nil {
		if err := b.Close(); err != nil {
			a.log.Warnf("close browser: %v", err)
		}
	}
	if err := browser.CloseInstance(); err != nil {
		a.log.Warnf("close browser: %v", err)
	}
	_ = a.log.Close()
}

// readHTML reads path, or stdin for "-".
func (a *app) readHTML(path string) (string, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(a.stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(raw), nil
}

// singleOutput is the image path for -html when -out is not given: next to
// the input, or screenshot<ext> for stdin.
func singleOutput(htmlPath, out string, format browser.Format) string {
	if out != "" {
		return out
	}
	if htmlPath == "-" {
		return "screenshot" + format.Ext()
	}
	return strings.TrimSuffix(htmlPath, filepath.Ext(htmlPath)) + format.Ext()
}

func (a *app) captureOne(ctx context.Context, b *browser.Browser) error {
	html, err := a.readHTML(a.opts.HTMLPath)
	if err != nil {
		return err
	}

	out := singleOutput(a.opts.HTMLPath, a.opts.Out, a.capture.Format)
	start := time.Now()
	res := batch.Result{
		Job:    batch.Job{Path: a.opts.HTMLPath, Rel: filepath.Base(a.opts.HTMLPath)},
		Output: out,
	}

	data, err := b.CaptureHTML(ctx, html, a.opts.Selector, a.capture)
	if err == nil {
		err = report.SaveImage(out, data)
	}
	res.Err = err
	res.Duration = time.Since(start)
	a.printResults([]batch.Result{res})
	if err != nil {
		return err
	}

	if a.opts.Copy {
		uri := fmt.Sprintf("data:%s;base64,%s", a.capture.Format.MIMEType(), data)
		if err := copyToClipboard(uri); err != nil {
			return fmt.Errorf("failed to copy to clipboard: %w", err)
		}
		fmt.Fprintln(a.stdout, a.styles.muted.Render("copied data URI to clipboard"))
	}
	return a.bundle([]string{out})
}

func (a *app) captureBatch(ctx context.Context, b *browser.Browser) error {
	include := []string(a.opts.Include)
	if len(include) == 0 {
		include = batch.DefaultInclude
	}
	matcher, err := batch.NewPatternMatcher(include, a.opts.Exclude)
	if err != nil {
		return err
	}
	jobs, err := batch.Collect(a.opts.BatchDir, matcher)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no files under %s match %s", a.opts.BatchDir, strings.Join(include, ","))
	}

	outDir := a.opts.Out
	if outDir == "" {
		outDir = a.opts.BatchDir
	}
	a.log.Infof("capturing %d files, %d at a time", len(jobs), a.cfg.Capture.Parallel)

	results := batch.Run(ctx, jobs, a.cfg.Capture.Parallel, func(ctx context.Context, job batch.Job) (string, error) {
		html, err := a.readHTML(job.Path)
		if err != nil {
			return "", err
		}
		data, err := b.CaptureHTML(ctx, html, a.opts.Selector, a.capture)
		if err != nil {
			return "", err
		}
		out := job.OutputPath(outDir, a.capture.Format.Ext())
		return out, report.SaveImage(out, data)
	})
	a.printResults(results)

	var written []string
	for _, r := range results {
		if r.Err == nil {
			written = append(written, r.Output)
		}
	}
	if len(written) > 0 {
		if err := a.bundle(written); err != nil {
			return err
		}
	}

	if failed := batch.Failed(results); failed > 0 {
		return fmt.Errorf("%d of %d captures failed", failed, len(results))
	}
	return nil
}

// bundle writes the -pdf report if one was asked for.
func (a *app) bundle(images []string) error {
	if a.opts.PDF == "" {
		return nil
	}
	if err := report.BundlePDF(images, a.opts.PDF); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s %s\n", a.styles.muted.Render("pdf:"), a.styles.path.Render(a.opts.PDF))
	return nil
}
