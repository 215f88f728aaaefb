package report

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeCapturer saves full-page screenshots of externally rendered
// dashboards through a headless browser.
type ChromeCapturer struct {
	// settleDelay gives dashboard panels time to finish rendering after
	// the page load event.
	settleDelay time.Duration
}

// NewChromeCapturer creates a capturer with a 2s render settle delay.
func NewChromeCapturer() *ChromeCapturer {
	return &ChromeCapturer{settleDelay: 2 * time.Second}
}

// Capture navigates to url and writes a full-page screenshot to outPath.
// The caller bounds the whole operation with a deadline on ctx.
func (c *ChromeCapturer) Capture(ctx context.Context, url, outPath string) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var buf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(c.settleDelay),
		chromedp.FullScreenshot(&buf, 90),
	)
	if err != nil {
		return fmt.Errorf("dashboard capture: %w", err)
	}

	if err := os.WriteFile(outPath, buf, 0o644); err != nil {
		return fmt.Errorf("write dashboard screenshot: %w", err)
	}
	return nil
}
