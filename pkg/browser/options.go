package browser

import (
	"fmt"
	"strings"

	"github.com/entrhq/htmlshot/pkg/config"
)

// Format is the image encoding of a screenshot.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat accepts png, jpeg and jpg in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported image format: %s", s)
	}
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	if f == FormatPNG {
		return ".png"
	}
	return ".jpg"
}

// MIMEType returns the media type for the format.
func (f Format) MIMEType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// DefaultQuality is the JPEG quality used when none is given.
const DefaultQuality = 90

// CaptureOptions selects the screenshot encoding.
type CaptureOptions struct {
	Format Format

	// Quality applies to JPEG only (0-100)
	Quality int
}

// DefaultCaptureOptions returns JPEG at quality 90.
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{Format: FormatJPEG, Quality: DefaultQuality}
}

// CaptureOptionsFromConfig converts the capture section of the configuration.
func CaptureOptionsFromConfig(cfg config.CaptureConfig) (CaptureOptions, error) {
	opts := DefaultCaptureOptions()
	if cfg.Format != "" {
		f, err := ParseFormat(cfg.Format)
		if err != nil {
			return CaptureOptions{}, err
		}
		opts.Format = f
	}
	if cfg.Quality > 0 {
		opts.Quality = cfg.Quality
	}
	return opts.normalized(), nil
}

func (o CaptureOptions) normalized() CaptureOptions {
	if o.Format == "" {
		o.Format = FormatJPEG
	}
	if o.Quality < 0 {
		o.Quality = 0
	}
	if o.Quality > 100 {
		o.Quality = 100
	}
	return o
}

// Clip is the page rectangle a screenshot is limited to.
type Clip struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

// captureParams builds the Page.captureScreenshot params. quality is only
// present for JPEG.
func captureParams(clip Clip, opts CaptureOptions) map[string]any {
	opts = opts.normalized()
	params := map[string]any{
		"clip":                  clip,
		"fromSurface":           true,
		"captureBeyondViewport": true,
		"format":                string(opts.Format),
	}
	if opts.Format == FormatJPEG {
		params["quality"] = opts.Quality
	}
	return params
}
