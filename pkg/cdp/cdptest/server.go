// Package cdptest provides an in-process fake browser that speaks the subset
// of the DevTools protocol htmlshot uses, for tests.
//
// The fake answers outer commands directly and unwraps
// Target.sendMessageToTarget the way Chrome does: it acknowledges the outer
// command, then answers the nested command with a
// Target.receivedMessageFromTarget event, optionally after a per-call delay so
// tests can shuffle reply order.
package cdptest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/htmlshot/pkg/cdp"
	"github.com/gorilla/websocket"
)

// Handler answers an outer command.
type Handler func(params json.RawMessage) (any, *cdp.ResponseError)

// SessionHandler answers a nested command sent to a tab session.
type SessionHandler func(sessionID string, params json.RawMessage) (any, *cdp.ResponseError)

// DelayFunc decides how long to hold back the answer to a nested command.
type DelayFunc func(sessionID, method string, params json.RawMessage) time.Duration

type noReply struct{}

// NoReply returned as a result makes the server acknowledge the outer command
// but never answer the nested one.
var NoReply any = noReply{}

// Call records one command received by the server.
type Call struct {
	SessionID string
	Method    string
	Params    json.RawMessage
}

// Server is a fake browser endpoint.
type Server struct {
	URL string

	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu              sync.Mutex
	browserHandlers map[string]Handler
	sessionHandlers map[string]SessionHandler
	delay           DelayFunc
	browserCalls    []Call
	sessionCalls    []Call
	peers           []*peer
	targets         []string
	created         int
	closed          bool
	wg              sync.WaitGroup
}

type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) writeJSON(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(v)
}

// NewServer starts a fake browser and stops it when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		browserHandlers: make(map[string]Handler),
		sessionHandlers: make(map[string]SessionHandler),
		targets:         []string{"initial-page"},
	}
	s.installDefaults()

	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	s.URL = "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/devtools/browser/fake"
	t.Cleanup(s.Close)
	return s
}

// Dial connects a Multiplexer to the server.
func (s *Server) Dial(t testing.TB, timeout time.Duration) *cdp.Multiplexer {
	t.Helper()

	mux, err := cdp.Dial(context.Background(), s.URL, cdp.Options{Timeout: timeout})
	if err != nil {
		t.Fatalf("dial fake browser: %v", err)
	}
	t.Cleanup(mux.Shutdown)
	return mux
}

// Targets returns the ids of the targets that are open.
func (s *Server) Targets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.targets...)
}

// HandleBrowser overrides the answer to an outer method.
func (s *Server) HandleBrowser(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.browserHandlers[method] = h
}

// HandleSession sets the answer to a nested method. Unhandled nested methods
// answer {}.
func (s *Server) HandleSession(method string, h SessionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionHandlers[method] = h
}

// SetDelay installs a delay for nested answers.
func (s *Server) SetDelay(d DelayFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// SessionCalls returns the nested commands received so far.
func (s *Server) SessionCalls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.sessionCalls...)
}

// SessionCallsFor returns the nested commands with the given method.
func (s *Server) SessionCallsFor(method string) []Call {
	var out []Call
	for _, c := range s.SessionCalls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// BrowserCalls returns the outer commands received so far.
func (s *Server) BrowserCalls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.browserCalls...)
}

// BrowserClosed reports whether Browser.close was received.
func (s *Server) BrowserClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// DropConnections closes every client connection without a close handshake,
// which clients observe as a read error.
func (s *Server) DropConnections() {
	s.mu.Lock()
	peers := s.peers
	s.peers = nil
	s.mu.Unlock()

	for _, p := range peers {
		_ = p.conn.Close()
	}
}

// Close stops the server.
func (s *Server) Close() {
	s.DropConnections()
	s.srv.Close()
	s.wg.Wait()
}

func (s *Server) installDefaults() {
	s.browserHandlers["Target.createTarget"] = func(json.RawMessage) (any, *cdp.ResponseError) {
		s.mu.Lock()
		s.created++
		id := fmt.Sprintf("target-%d", s.created)
		s.targets = append(s.targets, id)
		s.mu.Unlock()
		return map[string]any{"targetId": id}, nil
	}
	s.browserHandlers["Target.attachToTarget"] = func(params json.RawMessage) (any, *cdp.ResponseError) {
		var p struct {
			TargetID string `json:"targetId"`
		}
		if err := json.Unmarshal(params, &p); err != nil || p.TargetID == "" {
			return nil, &cdp.ResponseError{Code: -32602, Message: "targetId required"}
		}
		return map[string]any{"sessionId": "session-" + p.TargetID}, nil
	}
	s.browserHandlers["Target.getTargets"] = func(json.RawMessage) (any, *cdp.ResponseError) {
		s.mu.Lock()
		defer s.mu.Unlock()
		infos := make([]map[string]any, 0, len(s.targets))
		for _, id := range s.targets {
			infos = append(infos, map[string]any{"targetId": id, "type": "page", "url": "about:blank"})
		}
		return map[string]any{"targetInfos": infos}, nil
	}
	s.browserHandlers["Target.closeTarget"] = s.closeTarget
	s.sessionHandlers["Target.closeTarget"] = func(_ string, params json.RawMessage) (any, *cdp.ResponseError) {
		return s.closeTarget(params)
	}
	s.sessionHandlers["DOM.getDocument"] = func(string, json.RawMessage) (any, *cdp.ResponseError) {
		return map[string]any{"root": map[string]any{"nodeId": 1, "nodeName": "#document"}}, nil
	}
	s.browserHandlers[cdp.MethodBrowserClose] = func(json.RawMessage) (any, *cdp.ResponseError) {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		return map[string]any{}, nil
	}
}

func (s *Server) closeTarget(params json.RawMessage) (any, *cdp.ResponseError) {
	var p struct {
		TargetID string `json:"targetId"`
	}
	_ = json.Unmarshal(params, &p)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range s.targets {
		if id == p.TargetID {
			s.targets = append(s.targets[:i], s.targets[i+1:]...)
			return map[string]any{"success": true}, nil
		}
	}
	return nil, &cdp.ResponseError{Code: -32000, Message: "No target with given id found"}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{conn: conn}

	s.mu.Lock()
	s.peers = append(s.peers, p)
	s.mu.Unlock()

	for {
		var cmd struct {
			ID     uint64          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := conn.ReadJSON(&cmd); err != nil {
			_ = conn.Close()
			return
		}

		if cmd.Method == cdp.MethodSendMessageToTarget {
			s.handleTargetMessage(p, cmd.ID, cmd.Params)
			continue
		}

		s.mu.Lock()
		s.browserCalls = append(s.browserCalls, Call{Method: cmd.Method, Params: cmd.Params})
		h := s.browserHandlers[cmd.Method]
		s.mu.Unlock()

		var result any = map[string]any{}
		var rerr *cdp.ResponseError
		if h != nil {
			result, rerr = h(cmd.Params)
		}
		_ = p.writeJSON(replyFrame(cmd.ID, result, rerr))
	}
}

func (s *Server) handleTargetMessage(p *peer, outerID uint64, params json.RawMessage) {
	var msg cdp.TargetMessage
	if err := json.Unmarshal(params, &msg); err != nil {
		_ = p.writeJSON(replyFrame(outerID, nil, &cdp.ResponseError{Code: -32602, Message: "bad params"}))
		return
	}
	var inner struct {
		ID     uint64          `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal([]byte(msg.Message), &inner); err != nil {
		_ = p.writeJSON(replyFrame(outerID, nil, &cdp.ResponseError{Code: -32700, Message: "bad message"}))
		return
	}

	s.mu.Lock()
	s.sessionCalls = append(s.sessionCalls, Call{SessionID: msg.SessionID, Method: inner.Method, Params: inner.Params})
	h := s.sessionHandlers[inner.Method]
	delay := s.delay
	s.mu.Unlock()

	// Chrome acknowledges the wrapper before the tab answers.
	_ = p.writeJSON(replyFrame(outerID, map[string]any{}, nil))

	var result any = map[string]any{}
	var rerr *cdp.ResponseError
	if h != nil {
		result, rerr = h(msg.SessionID, inner.Params)
	}
	if result == NoReply {
		return
	}

	var wait time.Duration
	if delay != nil {
		wait = delay(msg.SessionID, inner.Method, inner.Params)
	}

	nested, err := json.Marshal(replyFrame(inner.ID, result, rerr))
	if err != nil {
		return
	}
	event := map[string]any{
		"method": cdp.MethodReceivedMessageFromTarget,
		"params": cdp.TargetMessage{SessionID: msg.SessionID, Message: string(nested)},
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if wait > 0 {
			time.Sleep(wait)
		}
		_ = p.writeJSON(event)
	}()
}

func replyFrame(id uint64, result any, rerr *cdp.ResponseError) map[string]any {
	if rerr != nil {
		return map[string]any{"id": id, "error": rerr}
	}
	if result == nil {
		result = map[string]any{}
	}
	return map[string]any{"id": id, "result": result}
}
