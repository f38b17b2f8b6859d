package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/entrhq/htmlshot/pkg/cdp"
	"github.com/entrhq/htmlshot/pkg/htmldoc"
	"github.com/entrhq/htmlshot/pkg/logging"
)

// ErrTabClosed is returned by commands issued on a Tab after Close.
var ErrTabClosed = errors.New("browser: tab closed")

// Tab is one page target attached through a session. All of its commands are
// tunnelled through Target.sendMessageToTarget on the browser connection, so
// any number of tabs can work concurrently.
type Tab struct {
	// SessionID addresses nested commands to this tab
	SessionID string

	// TargetID identifies the page target
	TargetID string

	browser *Browser
	closed  atomic.Bool
}

// NewTab opens a blank page and attaches a session to it.
func (b *Browser) NewTab(ctx context.Context) (*Tab, error) {
	var created struct {
		TargetID string `json:"targetId"`
	}
	if err := b.call(ctx, "Target.createTarget", map[string]any{"url": "about:blank"}, &created); err != nil {
		return nil, err
	}
	if created.TargetID == "" {
		return nil, cdp.MissingField("Target.createTarget", "targetId")
	}

	var attached struct {
		SessionID string `json:"sessionId"`
	}
	if err := b.call(ctx, "Target.attachToTarget", map[string]any{"targetId": created.TargetID}, &attached); err != nil {
		b.closeTarget(created.TargetID)
		return nil, err
	}
	if attached.SessionID == "" {
		b.closeTarget(created.TargetID)
		return nil, cdp.MissingField("Target.attachToTarget", "sessionId")
	}

	b.log.Debugf("opened tab %s (session %s)", created.TargetID, attached.SessionID)
	return &Tab{
		SessionID: attached.SessionID,
		TargetID:  created.TargetID,
		browser:   b,
	}, nil
}

// Send runs one command inside the tab and returns its result. A reply
// carrying an error object becomes a *cdp.ProtocolError.
func (t *Tab) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return t.send(ctx, method, params, 0)
}

// send is Send with an explicit nested budget; budget <= 0 uses the
// connection default.
func (t *Tab) send(ctx context.Context, method string, params any, budget time.Duration) (json.RawMessage, error) {
	if t.closed.Load() {
		return nil, ErrTabClosed
	}
	return t.roundTrip(ctx, method, params, budget)
}

// roundTrip registers for the nested reply before the wrapper is written, so
// the reply cannot arrive unclaimed.
func (t *Tab) roundTrip(ctx context.Context, method string, params any, budget time.Duration) (json.RawMessage, error) {
	mux := t.browser.mux

	cmd := cdp.NewCommand(method, params)
	wrapped, err := cdp.WrapForSession(t.SessionID, cmd)
	if err != nil {
		return nil, err
	}

	waiter, err := mux.Expect(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	if _, err := mux.Send(ctx, wrapped); err != nil {
		waiter.Cancel()
		return nil, err
	}

	reply, err := waiter.Wait(ctx, budget)
	if err != nil {
		var te *cdp.TimeoutError
		if errors.As(err, &te) {
			te.Method = method
		}
		return nil, err
	}
	if reply.Error != nil {
		return nil, &cdp.ProtocolError{
			Method:  method,
			Code:    reply.Error.Code,
			Message: reply.Error.Message,
		}
	}
	return reply.Result, nil
}

// decode runs a command and unmarshals its result into out.
func (t *Tab) decode(ctx context.Context, method string, params any, out any) error {
	result, err := t.Send(ctx, method, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result, out); err != nil {
		return &cdp.ProtocolError{Method: method, Message: fmt.Sprintf("undecodable result: %v", err)}
	}
	return nil
}

type evaluateResult struct {
	Result struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text      string `json:"text"`
		Exception *struct {
			Description string `json:"description"`
		} `json:"exception"`
	} `json:"exceptionDetails"`
}

// SetContent replaces the document with html and returns once it has
// finished loading images and stylesheets and rendered two frames. The page
// gives up after the browser's load timeout; a script exception becomes a
// *cdp.ProtocolError.
func (t *Tab) SetContent(ctx context.Context, html string) error {
	const method = "Runtime.evaluate"
	b := t.browser

	if b.log.Enabled(logging.LevelDebug) {
		summary := htmldoc.Inspect(html)
		b.log.Debugf("setting content on %s: %s", t.TargetID, summary)
		if remote := summary.Remote(); len(remote) > 0 {
			b.log.Debugf("%s waits on %d remote resources: %s", t.TargetID, len(remote), strings.Join(remote, ", "))
		}
	}

	params := map[string]any{
		"expression":    setContentExpression(html, b.loadTimeout),
		"awaitPromise":  true,
		"returnByValue": true,
	}
	result, err := t.send(ctx, method, params, b.loadTimeout+b.commandTimeout)
	if err != nil {
		return err
	}

	var eval evaluateResult
	if err := json.Unmarshal(result, &eval); err != nil {
		return &cdp.ProtocolError{Method: method, Message: fmt.Sprintf("undecodable result: %v", err)}
	}
	if d := eval.ExceptionDetails; d != nil {
		msg := d.Text
		if d.Exception != nil && d.Exception.Description != "" {
			msg = d.Exception.Description
		}
		return &cdp.ProtocolError{Method: method, Message: msg}
	}
	return nil
}

// FindElement resolves the first element matching selector.
func (t *Tab) FindElement(ctx context.Context, selector string) (*Element, error) {
	var doc struct {
		Root *struct {
			NodeID int64 `json:"nodeId"`
		} `json:"root"`
	}
	if err := t.decode(ctx, "DOM.getDocument", nil, &doc); err != nil {
		return nil, err
	}
	if doc.Root == nil {
		return nil, cdp.MissingField("DOM.getDocument", "root.nodeId")
	}

	var found struct {
		NodeID int64 `json:"nodeId"`
	}
	params := map[string]any{"nodeId": doc.Root.NodeID, "selector": selector}
	if err := t.decode(ctx, "DOM.querySelector", params, &found); err != nil {
		return nil, err
	}
	if found.NodeID == 0 {
		return nil, &cdp.NotFoundError{Selector: selector}
	}

	return t.describe(ctx, found.NodeID)
}

// Goto navigates the tab. It returns when the navigation is committed, not
// when the page has loaded.
func (t *Tab) Goto(ctx context.Context, url string) error {
	var nav struct {
		ErrorText string `json:"errorText"`
	}
	if err := t.decode(ctx, "Page.navigate", map[string]any{"url": url}, &nav); err != nil {
		return err
	}
	if nav.ErrorText != "" {
		return &cdp.ProtocolError{Method: "Page.navigate", Message: nav.ErrorText}
	}
	return nil
}

// Activate brings the tab to the front.
func (t *Tab) Activate(ctx context.Context) error {
	_, err := t.Send(ctx, "Target.activateTarget", map[string]any{"targetId": t.TargetID})
	return err
}

// Close closes the page target. Closing a closed tab does nothing.
func (t *Tab) Close(ctx context.Context) error {
	if t.closed.Swap(true) {
		return nil
	}
	if _, err := t.roundTrip(ctx, "Target.closeTarget", map[string]any{"targetId": t.TargetID}, 0); err != nil {
		return err
	}
	t.browser.log.Debugf("closed tab %s", t.TargetID)
	return nil
}

// Closed reports whether Close has been called.
func (t *Tab) Closed() bool {
	return t.closed.Load()
}
