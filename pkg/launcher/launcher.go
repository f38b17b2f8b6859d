// Package launcher starts a Chromium-family browser with remote debugging
// enabled and tears it down again.
package launcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"sync"

	"github.com/entrhq/htmlshot/pkg/config"
	"github.com/entrhq/htmlshot/pkg/logging"
)

var debuggerURLPattern = regexp.MustCompile(`listening on (.*/devtools/browser/.*)$`)

// ParseDebuggerURL extracts the websocket URL from a browser stderr line such
// as "DevTools listening on ws://127.0.0.1:9222/devtools/browser/<id>".
func ParseDebuggerURL(line string) (string, bool) {
	m := debuggerURLPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Process is a running browser.
type Process struct {
	// URL is the browser-level debugger websocket URL
	URL string

	// ProfileDir is the temporary user-data directory, removed on Close
	ProfileDir string

	cmd     *exec.Cmd
	drained chan struct{}
	log     *logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// Launch starts the browser described by cfg and waits until it announces
// its debugger URL, for at most cfg.StartupTimeout or until ctx is done.
func Launch(ctx context.Context, cfg config.BrowserConfig, log *logging.Logger) (*Process, error) {
	log = logging.OrDiscard(log)

	exe, err := FindExecutable(cfg)
	if err != nil {
		return nil, err
	}

	profileDir, err := createProfileDir(cfg.ProfileBase)
	if err != nil {
		return nil, &ProcessSpawnError{Executable: exe, Err: err}
	}

	// exec.Command rather than CommandContext: ctx bounds startup only
	cmd := exec.Command(exe, Args(cfg, profileDir)...)
	hideWindow(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = removeProfileDir(profileDir)
		return nil, &ProcessSpawnError{Executable: exe, Err: err}
	}
	if err := cmd.Start(); err != nil {
		_ = removeProfileDir(profileDir)
		return nil, &ProcessSpawnError{Executable: exe, Err: err}
	}
	log.Debugf("started %s (pid %d), profile %s", exe, cmd.Process.Pid, profileDir)

	p := &Process{
		ProfileDir: profileDir,
		cmd:        cmd,
		drained:    make(chan struct{}),
		log:        log,
	}

	urls := make(chan string, 1)
	go p.drain(stderr, urls)

	timeout := cfg.StartupTimeout.Std()
	if timeout <= 0 {
		timeout = config.DefaultConfig().Browser.StartupTimeout.Std()
	}
	startCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case url := <-urls:
		p.URL = url
		log.Infof("browser listening on %s", url)
		return p, nil

	case <-p.drained:
		// drain may have found the url right before EOF
		select {
		case url := <-urls:
			p.URL = url
			return p, nil
		default:
		}
		_ = p.Close()
		return nil, &SocketNotFoundError{Reason: "browser exited before announcing it"}

	case <-startCtx.Done():
		_ = p.Close()
		if errors.Is(startCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &SocketNotFoundError{Reason: fmt.Sprintf("not announced within %s", timeout)}
		}
		return nil, ctx.Err()
	}
}

// drain reads stderr to EOF. The first debugger URL goes to urls; every
// line is logged at debug level so the pipe never fills up.
func (p *Process) drain(stderr io.Reader, urls chan<- string) {
	defer close(p.drained)

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	found := false
	for scanner.Scan() {
		line := scanner.Text()
		if !found {
			if url, ok := ParseDebuggerURL(line); ok {
				found = true
				urls <- url
				continue
			}
		}
		p.log.Debugf("browser: %s", line)
	}
}

// Close kills the browser, reaps it, and removes the profile directory.
// Calling it again returns the first result.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		if err := p.cmd.Process.Kill(); err != nil {
			p.log.Debugf("kill browser: %v", err)
		}
		// Wait must not run before stderr is fully read
		<-p.drained
		if err := p.cmd.Wait(); err != nil {
			p.log.Debugf("browser exited: %v", err)
		}
		p.closeErr = removeProfileDir(p.ProfileDir)
	})
	return p.closeErr
}
