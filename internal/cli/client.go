package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/health"
)

var serverAddr string

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "", "health server base URL (default http://localhost:<server.port>)")
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

// baseURL resolves the health server address from --addr or the config.
func baseURL() (string, error) {
	if serverAddr != "" {
		return strings.TrimRight(serverAddr, "/"), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://localhost:%d", cfg.Server.Port), nil
}

func fetchReport(ctx context.Context, base string) (health.Report, error) {
	var report health.Report

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health/detailed", nil)
	if err != nil {
		return report, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return report, fmt.Errorf("failed to reach health server: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return report, fmt.Errorf("health server returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return report, fmt.Errorf("failed to decode report: %w", err)
	}
	return report, nil
}

func postSimulate(ctx context.Context, base string, d domain.Domain, level domain.DetectionLevel) error {
	q := url.Values{}
	q.Set("detector", string(d))
	q.Set("level", string(level))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/simulate?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach health server: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("simulate rejected: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
