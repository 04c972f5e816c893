package statestore

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
)

// WranglerFallback writes KV values through the wrangler CLI. It exists for
// the rare case where the HTTP API rejects a write that the CLI, using the
// same credentials, still accepts.
type WranglerFallback struct {
	bin       string
	accountID string
	apiToken  string
}

// NewWranglerFallback builds the CLI writer, or returns nil when no wrangler
// binary is configured or found on PATH.
func NewWranglerFallback(cfg *config.Config) *WranglerFallback {
	bin := cfg.Deploy.WranglerBin
	if bin == "" {
		bin = "wrangler"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil
	}
	return &WranglerFallback{
		bin:       bin,
		accountID: cfg.KV.AccountID,
		apiToken:  cfg.KV.APIToken,
	}
}

// Put writes the value via `wrangler kv key put`. The value travels through a
// temp file to avoid shell quoting issues with large JSON blobs.
func (w *WranglerFallback) Put(ctx context.Context, namespaceID, key string, value []byte) error {
	if w == nil {
		return fmt.Errorf("wrangler not available")
	}
	tmp, err := os.CreateTemp("", "podfeed-state-*.json")
	if err != nil {
		return fmt.Errorf("stage value: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("stage value: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stage value: %w", err)
	}

	cmd := exec.CommandContext(ctx, w.bin, "kv", "key", "put",
		"--namespace-id", namespaceID, key, "--path", tmp.Name())
	cmd.Env = append(os.Environ(),
		"CLOUDFLARE_ACCOUNT_ID="+w.accountID,
		"CLOUDFLARE_API_TOKEN="+w.apiToken,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("wrangler kv put: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
