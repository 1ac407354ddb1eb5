package runner

import (
	"context"
	"io"
	"net/http"
	"time"

	"trade_guard/pkg/logger"
)

// KeepAlive пингует собственный внешний URL, чтобы хостинг не усыплял сервис.
// Ошибки не важны, только логируются.
func KeepAlive(ctx context.Context, url string, interval, timeout time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping(ctx, client, url)
		}
	}
}

func ping(ctx context.Context, client *http.Client, url string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.Debug("[keepalive] bad url %q: %v", url, err)
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		logger.Debug("[keepalive] %s: %v", url, err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
