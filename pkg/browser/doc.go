// Package browser renders HTML in a headless browser and captures elements
// as images.
//
// A Browser owns one DevTools connection. Each Tab is a page target with its
// own session on that connection; tabs can be driven from separate
// goroutines at the same time.
//
//	b, err := browser.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer b.Close()
//
//	data, err := b.CaptureHTML(ctx, "<h1>Hello</h1>", "h1", browser.DefaultCaptureOptions())
//
// data is the base64 encoded image. Instance and CloseInstance manage one
// Browser shared by the whole process.
package browser
