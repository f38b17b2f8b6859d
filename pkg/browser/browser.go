package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/htmlshot/pkg/cdp"
	"github.com/entrhq/htmlshot/pkg/config"
	"github.com/entrhq/htmlshot/pkg/launcher"
	"github.com/entrhq/htmlshot/pkg/logging"
)

// Browser is a connection to one browser process. It is safe for concurrent
// use; tabs opened from it share the connection.
type Browser struct {
	mux  *cdp.Multiplexer
	proc *launcher.Process

	commandTimeout time.Duration
	loadTimeout    time.Duration
	log            *logging.Logger
	observer       cdp.Observer

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Browser.
type Option func(*Browser)

// WithLogger sets the logger for the browser and its connection
func WithLogger(log *logging.Logger) Option {
	return func(b *Browser) {
		b.log = log
	}
}

// WithObserver traces every protocol frame
func WithObserver(observer cdp.Observer) Option {
	return func(b *Browser) {
		b.observer = observer
	}
}

func newBrowser(cfg *config.Config, opts []Option) *Browser {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	b := &Browser{
		commandTimeout: cfg.Protocol.CommandTimeout.Std(),
		loadTimeout:    cfg.Protocol.LoadTimeout.Std(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = logging.OrDiscard(b.log)

	defaults := config.DefaultConfig()
	if b.commandTimeout <= 0 {
		b.commandTimeout = defaults.Protocol.CommandTimeout.Std()
	}
	if b.loadTimeout <= 0 {
		b.loadTimeout = defaults.Protocol.LoadTimeout.Std()
	}
	return b
}

func (b *Browser) dial(ctx context.Context, url string) error {
	mux, err := cdp.Dial(ctx, url, cdp.Options{
		Timeout:  b.commandTimeout,
		Logger:   b.log.Named("cdp"),
		Observer: b.observer,
	})
	if err != nil {
		return err
	}
	b.mux = mux
	return nil
}

// New launches a browser as configured and connects to it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Browser, error) {
	b := newBrowser(cfg, opts)
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	proc, err := launcher.Launch(ctx, cfg.Browser, b.log.Named("launcher"))
	if err != nil {
		return nil, err
	}

	if err := b.dial(ctx, proc.URL); err != nil {
		_ = proc.Close()
		return nil, err
	}
	b.proc = proc
	return b, nil
}

// Connect attaches to a browser that is already running and listening on
// url. Close then only closes the connection.
func Connect(ctx context.Context, url string, cfg *config.Config, opts ...Option) (*Browser, error) {
	b := newBrowser(cfg, opts)
	if err := b.dial(ctx, url); err != nil {
		return nil, err
	}
	return b, nil
}

// call runs an outer command and decodes its result into out (if not nil).
func (b *Browser) call(ctx context.Context, method string, params any, out any) error {
	reply, err := b.mux.Send(ctx, cdp.NewCommand(method, params))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(reply.Result, out); err != nil {
		return &cdp.ProtocolError{Method: method, Message: fmt.Sprintf("undecodable result: %v", err)}
	}
	return nil
}

// closeTarget is best effort cleanup for a target that never became a Tab.
func (b *Browser) closeTarget(targetID string) {
	ctx, cancel := context.WithTimeout(context.Background(), b.commandTimeout)
	defer cancel()
	if err := b.call(ctx, "Target.closeTarget", map[string]any{"targetId": targetID}, nil); err != nil {
		b.log.Debugf("close target %s: %v", targetID, err)
	}
}

// TargetInfo describes one target known to the browser.
type TargetInfo struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// Targets lists the browser's targets.
func (b *Browser) Targets(ctx context.Context) ([]TargetInfo, error) {
	var res struct {
		TargetInfos []TargetInfo `json:"targetInfos"`
	}
	if err := b.call(ctx, "Target.getTargets", nil, &res); err != nil {
		return nil, err
	}
	return res.TargetInfos, nil
}

// CloseInitTab closes the first page target, the blank tab a freshly
// launched browser opens on its own. It does nothing if there is none.
func (b *Browser) CloseInitTab(ctx context.Context) error {
	targets, err := b.Targets(ctx)
	if err != nil {
		return err
	}
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if err := b.call(ctx, "Target.closeTarget", map[string]any{"targetId": t.TargetID}, nil); err != nil {
			return err
		}
		b.log.Debugf("closed initial tab %s", t.TargetID)
		return nil
	}
	return nil
}

// CaptureHTML renders html in a fresh tab and returns a base64 screenshot of
// the first element matching selector. The tab is closed whether or not the
// capture succeeds.
func (b *Browser) CaptureHTML(ctx context.Context, html, selector string, opts CaptureOptions) (string, error) {
	tab, err := b.NewTab(ctx)
	if err != nil {
		return "", fmt.Errorf("open tab: %w", err)
	}

	data, err := captureInTab(ctx, tab, html, selector, opts)
	if err != nil {
		// ctx may be what failed; the tab still needs closing
		closeCtx, cancel := context.WithTimeout(context.Background(), b.commandTimeout)
		defer cancel()
		if cerr := tab.Close(closeCtx); cerr != nil {
			b.log.Debugf("close tab %s after failure: %v", tab.TargetID, cerr)
		}
		return "", err
	}

	if err := tab.Close(ctx); err != nil {
		return "", fmt.Errorf("close tab: %w", err)
	}
	return data, nil
}

func captureInTab(ctx context.Context, tab *Tab, html, selector string, opts CaptureOptions) (string, error) {
	if err := tab.SetContent(ctx, html); err != nil {
		return "", fmt.Errorf("set content: %w", err)
	}
	el, err := tab.FindElement(ctx, selector)
	if err != nil {
		return "", fmt.Errorf("find element: %w", err)
	}
	data, err := el.Screenshot(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	return data, nil
}

// Close shuts the connection down and, for a launched browser, kills the
// process and removes its profile. Only the first call does anything;
// later calls return its result.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		b.mux.Shutdown()
		if b.proc != nil {
			b.closeErr = b.proc.Close()
		}
		b.log.Debugf("browser closed")
	})
	return b.closeErr
}

// Done is closed when the connection to the browser is gone.
func (b *Browser) Done() <-chan struct{} {
	return b.mux.Done()
}
