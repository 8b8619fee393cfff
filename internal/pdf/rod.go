package pdf

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// A4 in inches.
const (
	a4Width  = 8.27
	a4Height = 11.69
)

// RodRenderer prints the HTML with a local headless Chrome. A browser is
// launched per call and torn down afterwards.
type RodRenderer struct {
	// Bin is the Chrome binary; empty lets the launcher find or download one.
	Bin string
	// ControlURL connects to an already running browser instead of launching.
	ControlURL string
}

func (r *RodRenderer) Render(ctx context.Context, html, filename string) ([]byte, error) {
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyHTML
	}
	controlURL := r.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(true).Context(ctx)
		if r.Bin != "" {
			l = l.Bin(r.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		defer l.Cleanup()
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("set content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	stream, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
		PaperWidth:      f64(a4Width),
		PaperHeight:     f64(a4Height),
	})
	if err != nil {
		return nil, fmt.Errorf("print %s: %w", filename, err)
	}
	out, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read pdf stream: %w", err)
	}
	return out, nil
}

func f64(v float64) *float64 { return &v }
