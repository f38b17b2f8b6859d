package browser

import (
	"context"
	"fmt"

	"github.com/entrhq/htmlshot/pkg/cdp"
)

// Element is a DOM element located in a Tab. It is addressed by its backend
// node id, which survives reflows that invalidate ordinary node ids.
type Element struct {
	BackendNodeID int64

	tab *Tab
}

// describe turns a node id into an Element.
func (t *Tab) describe(ctx context.Context, nodeID int64) (*Element, error) {
	var described struct {
		Node *struct {
			BackendNodeID int64 `json:"backendNodeId"`
		} `json:"node"`
	}
	params := map[string]any{"nodeId": nodeID, "depth": 100}
	if err := t.decode(ctx, "DOM.describeNode", params, &described); err != nil {
		return nil, err
	}
	if described.Node == nil || described.Node.BackendNodeID == 0 {
		return nil, cdp.MissingField("DOM.describeNode", "node.backendNodeId")
	}
	return &Element{BackendNodeID: described.Node.BackendNodeID, tab: t}, nil
}

// ClipFromQuad converts a border quad [x0,y0,x1,y1,x2,y2,x3,y3] (clockwise
// from top-left) into a clip from the top-left corner to the opposite one.
// Only axis-aligned boxes come out right; rotated or skewed elements get a
// wrong rectangle.
func ClipFromQuad(quad []float64) (Clip, error) {
	if len(quad) < 8 {
		return Clip{}, &cdp.ProtocolError{
			Method:  "DOM.getBoxModel",
			Message: fmt.Sprintf("border quad has %d numbers, want 8", len(quad)),
		}
	}
	return Clip{
		X:      quad[0],
		Y:      quad[1],
		Width:  quad[4] - quad[0],
		Height: quad[7] - quad[1],
		Scale:  1,
	}, nil
}

// Clip returns the element's border box.
func (e *Element) Clip(ctx context.Context) (Clip, error) {
	var box struct {
		Model *struct {
			Border []float64 `json:"border"`
		} `json:"model"`
	}
	params := map[string]any{"backendNodeId": e.BackendNodeID}
	if err := e.tab.decode(ctx, "DOM.getBoxModel", params, &box); err != nil {
		return Clip{}, err
	}
	if box.Model == nil {
		return Clip{}, cdp.MissingField("DOM.getBoxModel", "model")
	}
	return ClipFromQuad(box.Model.Border)
}

// Screenshot captures the element and returns the base64 encoded image.
// The tab is activated first, which off-viewport capture needs.
func (e *Element) Screenshot(ctx context.Context, opts CaptureOptions) (string, error) {
	clip, err := e.Clip(ctx)
	if err != nil {
		return "", err
	}

	if err := e.tab.Activate(ctx); err != nil {
		return "", err
	}

	var shot struct {
		Data *string `json:"data"`
	}
	if err := e.tab.decode(ctx, "Page.captureScreenshot", captureParams(clip, opts), &shot); err != nil {
		return "", err
	}
	if shot.Data == nil {
		return "", cdp.MissingField("Page.captureScreenshot", "data")
	}
	return *shot.Data, nil
}
