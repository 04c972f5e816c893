// Package deploy republishes the public directory after feed changes. The
// pipeline records a pending flag before attempting a deploy and clears it
// only on success, so a crashed or failed deploy is retried on the next run
// even when that run has no new entries.
package deploy

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/logging"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services"
)

// Deployer publishes the public directory. Attempted is false when the
// deployer is not configured to do anything; a caller must not clear a
// pending deploy in that case.
type Deployer interface {
	Deploy(ctx context.Context) (attempted bool, err error)
}

// Noop is the deployer used when no publishing target is configured.
type Noop struct{}

// Deploy reports that nothing was attempted.
func (Noop) Deploy(context.Context) (bool, error) {
	return false, nil
}

// Wrangler deploys via `wrangler pages deploy`.
type Wrangler struct {
	bin       string
	project   string
	publicDir string
	logger    *slog.Logger
}

// New selects a deployer from configuration: wrangler when a Pages project is
// set and the binary exists, otherwise Noop.
func New(cfg *config.Config, logger *slog.Logger) Deployer {
	log := logging.NewComponentLogger(logger, "deploy")
	if cfg.Deploy.PagesProject == "" {
		return Noop{}
	}
	bin := cfg.Deploy.WranglerBin
	if bin == "" {
		bin = "wrangler"
	}
	if _, err := exec.LookPath(bin); err != nil {
		log.Warn("pages project configured but wrangler not found, deploys disabled",
			logging.String("bin", bin))
		return Noop{}
	}
	return &Wrangler{
		bin:       bin,
		project:   cfg.Deploy.PagesProject,
		publicDir: cfg.Paths.PublicDir,
		logger:    log,
	}
}

// Deploy pushes the public directory to Cloudflare Pages.
func (w *Wrangler) Deploy(ctx context.Context) (bool, error) {
	w.logger.Info("deploying public directory",
		logging.String("project", w.project),
		logging.String("dir", w.publicDir))

	cmd := exec.CommandContext(ctx, w.bin, "pages", "deploy", w.publicDir,
		"--project-name", w.project, "--commit-dirty=true")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return true, services.Wrap(services.ErrExternalTool, "deploy", "pages deploy",
			strings.TrimSpace(string(out)), err)
	}
	w.logger.Info("deploy finished", logging.String("project", w.project))
	return true, nil
}
