package cdp

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		frame      string
		wantKind   frameKind
		wantID     uint64
		wantMethod string
		wantErr    bool
	}{
		{
			name:     "outer reply",
			frame:    `{"id":7,"result":{"targetId":"T"}}`,
			wantKind: frameReply,
			wantID:   7,
		},
		{
			name:     "outer error reply",
			frame:    `{"id":8,"error":{"code":-32000,"message":"boom"}}`,
			wantKind: frameReply,
			wantID:   8,
		},
		{
			name:     "nested reply",
			frame:    `{"method":"Target.receivedMessageFromTarget","params":{"sessionId":"S","message":"{\"id\":9,\"result\":{}}"}}`,
			wantKind: frameNested,
			wantID:   9,
		},
		{
			name:       "nested event",
			frame:      `{"method":"Target.receivedMessageFromTarget","params":{"sessionId":"S","message":"{\"method\":\"Page.loadEventFired\",\"params\":{}}"}}`,
			wantKind:   frameEvent,
			wantMethod: "Page.loadEventFired",
		},
		{
			name:       "plain event",
			frame:      `{"method":"Target.targetCreated","params":{}}`,
			wantKind:   frameEvent,
			wantMethod: "Target.targetCreated",
		},
		{
			name:     "no id and no method",
			frame:    `{"result":{}}`,
			wantKind: frameUnknown,
		},
		{
			name:    "not json",
			frame:   `{"id":`,
			wantErr: true,
		},
		{
			name:    "nested message not json",
			frame:   `{"method":"Target.receivedMessageFromTarget","params":{"sessionId":"S","message":"nope"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := classify([]byte(tt.frame))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, f.kind, "got %s", f.kind)

			switch f.kind {
			case frameReply:
				assert.Equal(t, tt.wantID, f.reply.ID)
			case frameNested:
				assert.Equal(t, tt.wantID, f.nested.ID)
				assert.Equal(t, "S", f.nested.SessionID)
			case frameEvent:
				assert.Equal(t, tt.wantMethod, f.method)
			}
		})
	}
}

func TestClassify_NestedIDZeroIsReply(t *testing.T) {
	f, err := classify([]byte(`{"method":"Target.receivedMessageFromTarget","params":{"sessionId":"S","message":"{\"id\":0,\"result\":{}}"}}`))
	require.NoError(t, err)
	assert.Equal(t, frameNested, f.kind)
	assert.Zero(t, f.nested.ID)
}

func TestWrapForSession_DoubleEncodes(t *testing.T) {
	inner := NewCommand("Page.navigate", map[string]any{"url": "https://example.com/?q=\"x\""})

	outer, err := WrapForSession("S1", inner)
	require.NoError(t, err)
	assert.Equal(t, MethodSendMessageToTarget, outer.Method)
	assert.NotEqual(t, inner.ID, outer.ID)

	data, err := json.Marshal(outer)
	require.NoError(t, err)

	var decoded struct {
		ID     uint64        `json:"id"`
		Method string        `json:"method"`
		Params TargetMessage `json:"params"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "S1", decoded.Params.SessionID)

	var nested struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params map[string]string `json:"params"`
	}
	require.NoError(t, json.Unmarshal([]byte(decoded.Params.Message), &nested))
	assert.Equal(t, inner.ID, nested.ID)
	assert.Equal(t, "Page.navigate", nested.Method)
	assert.Equal(t, `https://example.com/?q="x"`, nested.Params["url"])
}

func TestNewCommand_NilParamsEncodeAsObject(t *testing.T) {
	data, err := json.Marshal(NewCommand("Browser.close", nil))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"params":{}`)
}

func TestErrors(t *testing.T) {
	timeout := &TimeoutError{ID: 3, Method: "Page.navigate", After: time.Second}
	wrapped := errors.Join(errors.New("capture"), timeout)
	assert.True(t, IsTimeout(wrapped))
	assert.Contains(t, timeout.Error(), "Page.navigate")

	nf := &NotFoundError{Selector: "#missing"}
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsNotFound(timeout))
	assert.Contains(t, nf.Error(), "#missing")

	cause := errors.New("reset")
	cerr := &ConnectionError{Op: "read", Err: cause}
	assert.ErrorIs(t, cerr, cause)

	perr := MissingField("DOM.describeNode", "node.backendNodeId")
	assert.Contains(t, perr.Error(), "node.backendNodeId")
}
