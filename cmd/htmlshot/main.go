// Package main provides the htmlshot command. It renders HTML files in a
// headless browser and saves a screenshot of one element per file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/entrhq/htmlshot/pkg/batch"
	"github.com/entrhq/htmlshot/pkg/browser"
	"github.com/entrhq/htmlshot/pkg/config"
)

const version = "0.1.0"

// Options holds the command line.
type Options struct {
	ConfigPath string
	InitConfig string

	HTMLPath string
	BatchDir string
	Include  listFlag
	Exclude  listFlag

	Selector string
	Format   string
	Quality  int
	Parallel int
	Out      string
	PDF      string

	Connect  string
	LogLevel string
	Copy     bool
	Trace    bool

	ShowVersion bool
}

// listFlag collects a repeatable, comma separated flag.
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// parseFlags parses args into Options
func parseFlags(args []string, stderr io.Writer) (*Options, error) {
	opts := &Options{}
	fs := flag.NewFlagSet("htmlshot", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (YAML)")
	fs.StringVar(&opts.InitConfig, "init-config", "", "Write the effective configuration to this file and exit")
	fs.StringVar(&opts.HTMLPath, "html", "", "HTML file to capture ('-' reads stdin)")
	fs.StringVar(&opts.BatchDir, "batch", "", "Capture every matching HTML file under this directory")
	fs.Var(&opts.Include, "include", "Batch include pattern, repeatable (default: "+strings.Join(batch.DefaultInclude, ",")+")")
	fs.Var(&opts.Exclude, "exclude", "Batch exclude pattern, repeatable")
	fs.StringVar(&opts.Selector, "selector", "body", "CSS selector of the element to capture")
	fs.StringVar(&opts.Format, "format", "", "Image format: png or jpeg (overrides config)")
	fs.IntVar(&opts.Quality, "quality", 0, "JPEG quality 1-100 (overrides config)")
	fs.IntVar(&opts.Parallel, "parallel", 0, "Concurrent captures in batch mode (overrides config)")
	fs.StringVar(&opts.Out, "out", "", "Output image (single mode) or directory (batch mode)")
	fs.StringVar(&opts.PDF, "pdf", "", "Also bundle the captured images into this PDF")
	fs.StringVar(&opts.Connect, "connect", "", "Use a running browser at this ws:// debugger URL instead of launching one")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	fs.BoolVar(&opts.Copy, "copy", false, "Copy the screenshot to the clipboard as a data: URI")
	fs.BoolVar(&opts.Trace, "trace", false, "Print every protocol frame to stderr")
	fs.BoolVar(&opts.ShowVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "htmlshot - screenshots of HTML elements\n\n")
		fmt.Fprintf(stderr, "Usage: htmlshot [options]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  htmlshot -html card.html -selector '#card' -out card.png -format png\n")
		fmt.Fprintf(stderr, "  cat card.html | htmlshot -html - -selector '.card' -copy\n")
		fmt.Fprintf(stderr, "  htmlshot -batch ./cards -exclude 'drafts/**' -out ./shots -pdf cards.pdf\n")
		fmt.Fprintf(stderr, "  htmlshot -init-config htmlshot.yaml\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

// validate checks flag combinations
func (o *Options) validate() error {
	if o.HTMLPath == "" && o.BatchDir == "" {
		return errors.New("nothing to capture: use -html or -batch")
	}
	if o.HTMLPath != "" && o.BatchDir != "" {
		return errors.New("-html and -batch cannot be combined")
	}
	if o.Copy && o.BatchDir != "" {
		return errors.New("-copy only works with -html")
	}
	if strings.TrimSpace(o.Selector) == "" {
		return errors.New("-selector cannot be empty")
	}
	if o.BatchDir != "" {
		info, err := os.Stat(o.BatchDir)
		if err != nil {
			return fmt.Errorf("batch directory error: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("batch path '%s' is not a directory", o.BatchDir)
		}
	}
	return nil
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(o *Options) (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.Format != "" {
		f, err := browser.ParseFormat(o.Format)
		if err != nil {
			return nil, err
		}
		cfg.Capture.Format = string(f)
	}
	if o.Quality != 0 {
		cfg.Capture.Quality = o.Quality
	}
	if o.Parallel != 0 {
		cfg.Capture.Parallel = o.Parallel
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

// realMain runs the command and returns the process exit code.
func realMain(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	st := newStyles(stderr)
	if opts.ShowVersion {
		fmt.Fprintf(stdout, "htmlshot v%s\n", version)
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(stderr, st.err.Render("Configuration error: "+err.Error()))
		return 1
	}

	if opts.InitConfig != "" {
		if err := cfg.Save(opts.InitConfig); err != nil {
			fmt.Fprintln(stderr, st.err.Render(err.Error()))
			return 1
		}
		fmt.Fprintf(stdout, "wrote %s\n", opts.InitConfig)
		return 0
	}

	if err := opts.validate(); err != nil {
		fmt.Fprintln(stderr, st.err.Render(err.Error()))
		return 2
	}

	a, err := newApp(opts, cfg, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, st.err.Render(err.Error()))
		return 1
	}
	return a.main()
}
