package launcher

import (
	"fmt"

	"github.com/entrhq/htmlshot/pkg/config"
)

// defaultArgs keep a headless renderer quiet and fast.
var defaultArgs = []string{
	// startup
	"--no-sandbox",
	"--no-first-run",
	"--no-default-browser-check",
	"--no-experiments",
	"--no-pings",

	// memory and cache
	"--js-flags=--max-old-space-size=8192",
	"--disk-cache-size=67108864",
	"--memory-pressure-off",
	"--aggressive-cache-discard",
	"--disable-dev-shm-usage",

	// processes
	"--process-per-site",
	"--disable-hang-monitor",
	"--disable-renderer-backgrounding",
	"--disable-background-timer-throttling",
	"--disable-backgrounding-occluded-windows",

	// features nobody needs for a screenshot
	"--disable-sync",
	"--disable-breakpad",
	"--disable-infobars",
	"--disable-extensions",
	"--disable-default-apps",
	"--disable-notifications",
	"--disable-popup-blocking",
	"--disable-prompt-on-repost",
	"--disable-client-side-phishing-detection",

	// network
	"--enable-async-dns",
	"--enable-parallel-downloading",
	"--ignore-certificate-errors",
	"--disable-http-cache",

	// rendering
	"--force-color-profile=srgb",
	"--disable-gpu",
	"--disable-gpu-compositing",
	"--use-gl=swiftshader",

	"--disable-features=TranslateUI,BlinkGenPropertyTrees,AudioServiceOutOfProcess",
	"--enable-features=NetworkService,NetworkServiceInProcess,CalculateNativeWinOcclusion",

	"--disable-ipc-flooding-protection",
	"--no-zygote",

	// the debugger url is read from stderr
	"--enable-logging=stderr",
}

// Args builds the command line for a browser using profileDir. Port 0 lets
// the browser pick a free debugging port; the chosen one is in the URL it
// prints.
func Args(cfg config.BrowserConfig, profileDir string) []string {
	args := []string{
		"--remote-debugging-port=0",
		fmt.Sprintf("--user-data-dir=%s", profileDir),
	}
	args = append(args, defaultArgs...)
	if cfg.Headless {
		args = append(args, "--headless")
	}
	args = append(args, cfg.ExtraArgs...)
	return args
}
