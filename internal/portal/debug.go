package portal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// screenshotter is implemented by pages that can capture themselves.
type screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// DumpDebug writes the current page HTML (and a PNG screenshot when the
// page supports it) into dir, named <prefix>-<timestamp>.{html,png}. It
// returns the paths written.
func DumpDebug(ctx context.Context, p Page, dir, prefix string) ([]string, error) {
	if dir == "" {
		return nil, fmt.Errorf("portal: debug dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	base := filepath.Join(dir, prefix+"-"+time.Now().Format("20060102-150405"))

	var written []string
	html, err := p.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("portal: reading page HTML: %w", err)
	}
	if err := os.WriteFile(base+".html", []byte(html), 0o600); err != nil {
		return nil, err
	}
	written = append(written, base+".html")

	if s, ok := p.(screenshotter); ok {
		png, err := s.Screenshot(ctx)
		if err != nil {
			return written, fmt.Errorf("portal: screenshot: %w", err)
		}
		if err := os.WriteFile(base+".png", png, 0o600); err != nil {
			return written, err
		}
		written = append(written, base+".png")
	}
	return written, nil
}
