package cdp

import (
	"encoding/json"
	"fmt"
)

// Methods the multiplexer itself depends on.
const (
	MethodSendMessageToTarget       = "Target.sendMessageToTarget"
	MethodReceivedMessageFromTarget = "Target.receivedMessageFromTarget"
	MethodBrowserClose              = "Browser.close"
)

// Command is an outbound {id, method, params} envelope. The same shape is used
// for outer commands and for the nested commands carried inside
// Target.sendMessageToTarget.
type Command struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

// NewCommand builds a command with a fresh id. Nil params encode as {}.
func NewCommand(method string, params any) Command {
	if params == nil {
		params = struct{}{}
	}
	return Command{
		ID:     NextID(),
		Method: method,
		Params: params,
	}
}

// ResponseError is the error object the browser sends instead of a result.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Reply answers an outer Command with the same id.
type Reply struct {
	ID     uint64
	Result json.RawMessage
	Error  *ResponseError
}

// NestedReply is the inner document of a Target.receivedMessageFromTarget
// event that answers a nested Command.
type NestedReply struct {
	SessionID string
	ID        uint64
	Result    json.RawMessage
	Error     *ResponseError
}

// TargetMessage is the params object of Target.sendMessageToTarget and
// Target.receivedMessageFromTarget. Message holds a whole JSON document as a
// string.
type TargetMessage struct {
	SessionID string `json:"sessionId"`
	TargetID  string `json:"targetId,omitempty"`
	Message   string `json:"message"`
}

// WrapForSession encodes cmd as the message of a Target.sendMessageToTarget
// command addressed to sessionID. The returned command has its own outer id.
func WrapForSession(sessionID string, cmd Command) (Command, error) {
	inner, err := json.Marshal(cmd)
	if err != nil {
		return Command{}, fmt.Errorf("cdp: encode nested %s: %w", cmd.Method, err)
	}
	return NewCommand(MethodSendMessageToTarget, TargetMessage{
		SessionID: sessionID,
		Message:   string(inner),
	}), nil
}

type frameKind int

const (
	frameUnknown frameKind = iota
	frameReply
	frameNested
	frameEvent
)

func (k frameKind) String() string {
	switch k {
	case frameReply:
		return "reply"
	case frameNested:
		return "nested"
	case frameEvent:
		return "event"
	default:
		return "unknown"
	}
}

// frame is one classified inbound frame. Exactly one of reply or nested is
// set, matching kind; method is set for events.
type frame struct {
	kind   frameKind
	reply  *Reply
	nested *NestedReply
	method string
}

// envelope covers every field an inbound document may carry, outer or nested.
type envelope struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *ResponseError  `json:"error"`
}

// classify parses an inbound frame once and decides its shape. A document
// with an id is a reply; a receivedMessageFromTarget event is unwrapped and
// its message string parsed as a second document, which is a nested reply if
// it has an id; anything else with a method is an event.
func classify(data []byte) (frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return frame{}, fmt.Errorf("decode frame: %w", err)
	}

	switch {
	case env.ID != nil:
		return frame{
			kind:  frameReply,
			reply: &Reply{ID: *env.ID, Result: env.Result, Error: env.Error},
		}, nil

	case env.Method == MethodReceivedMessageFromTarget:
		var msg TargetMessage
		if err := json.Unmarshal(env.Params, &msg); err != nil {
			return frame{}, fmt.Errorf("decode target message params: %w", err)
		}
		var inner envelope
		if err := json.Unmarshal([]byte(msg.Message), &inner); err != nil {
			return frame{}, fmt.Errorf("decode nested message: %w", err)
		}
		if inner.ID == nil {
			return frame{kind: frameEvent, method: inner.Method}, nil
		}
		return frame{
			kind: frameNested,
			nested: &NestedReply{
				SessionID: msg.SessionID,
				ID:        *inner.ID,
				Result:    inner.Result,
				Error:     inner.Error,
			},
		}, nil

	case env.Method != "":
		return frame{kind: frameEvent, method: env.Method}, nil
	}

	return frame{kind: frameUnknown}, nil
}
