package browser

import (
	"context"
	"sync"

	"github.com/entrhq/htmlshot/pkg/config"
)

var shared struct {
	mu      sync.Mutex
	browser *Browser
}

// Instance returns the process-wide shared Browser, launching it on first
// use with cfg and opts. Later calls return the same Browser and ignore
// their arguments until CloseInstance.
func Instance(ctx context.Context, cfg *config.Config, opts ...Option) (*Browser, error) {
	shared.mu.Lock()
	defer shared.mu.Unlock()

	if shared.browser != nil {
		select {
		case <-shared.browser.Done():
			// connection died; start over
			_ = shared.browser.Close()
			shared.browser = nil
		default:
			return shared.browser, nil
		}
	}

	b, err := New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	shared.browser = b
	return b, nil
}

// CloseInstance closes the shared Browser if there is one. The next Instance
// call launches a new one. Callers must make sure nobody is still using the
// old instance.
func CloseInstance() error {
	shared.mu.Lock()
	b := shared.browser
	shared.browser = nil
	shared.mu.Unlock()

	if b == nil {
		return nil
	}
	return b.Close()
}
