// Package archive uploads episode audio to the Internet Archive and derives
// the public download URLs the feed publishes. Object keys are deterministic,
// so re-uploading an episode overwrites the same item instead of duplicating
// it.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/logging"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services"
)

const (
	s3Base       = "https://s3.us.archive.org"
	downloadBase = "https://archive.org/download"
	objectName   = "episode.mp3"
)

const uploadBaseDelay = 2 * time.Second

// Uploader stores episode audio as Internet Archive items.
type Uploader struct {
	accessKey string
	secretKey string
	retries   int
	client    *http.Client
	logger    *slog.Logger
	sleep     func(time.Duration)
}

// NewUploader builds an uploader from configuration.
func NewUploader(cfg *config.Config, logger *slog.Logger) (*Uploader, error) {
	if cfg.Archive.AccessKey == "" || cfg.Archive.SecretKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "upload", "init",
			"missing archive.access_key or archive.secret_key", nil)
	}
	retries := cfg.Archive.UploadRetries
	if retries < 1 {
		retries = 1
	}
	return &Uploader{
		accessKey: cfg.Archive.AccessKey,
		secretKey: cfg.Archive.SecretKey,
		retries:   retries,
		client:    &http.Client{Timeout: time.Duration(cfg.Archive.TimeoutSeconds) * time.Second},
		logger:    logging.NewComponentLogger(logger, "archive"),
		sleep:     time.Sleep,
	}, nil
}

// PublicURL returns the public download URL for an identifier's audio object.
func PublicURL(identifier string) string {
	return fmt.Sprintf("%s/%s/%s", downloadBase, identifier, objectName)
}

// Exists reports whether the audio object is already downloadable. Used by
// the restore shortcut to avoid re-synthesizing entries whose local state was
// lost.
func (u *Uploader) Exists(ctx context.Context, identifier string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, PublicURL(identifier), nil)
	if err != nil {
		return false, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "upload", "probe", identifier, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Metadata carries the item metadata attached at upload time.
type Metadata struct {
	Title    string
	Creator  string
	Date     string
	Subject  string
	External string
}

// Upload stores the MP3 under the identifier, retrying transient failures,
// and returns the public URL.
func (u *Uploader) Upload(ctx context.Context, identifier, mp3Path string, meta Metadata) (string, error) {
	var lastErr error
	delay := uploadBaseDelay
	for attempt := 1; attempt <= u.retries; attempt++ {
		lastErr = u.uploadOnce(ctx, identifier, mp3Path, meta)
		if lastErr == nil {
			u.logger.Info("uploaded episode audio",
				logging.String("identifier", identifier))
			return PublicURL(identifier), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt < u.retries {
			u.logger.Warn("upload failed, retrying",
				logging.String("identifier", identifier),
				logging.Int("attempt", attempt),
				logging.Duration("backoff", delay),
				logging.Error(lastErr))
			u.sleep(delay)
			delay *= 2
		}
	}
	return "", services.Wrap(services.ErrTransient, "upload", "put", identifier, lastErr)
}

func (u *Uploader) uploadOnce(ctx context.Context, identifier, mp3Path string, meta Metadata) error {
	file, err := os.Open(mp3Path)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat audio: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s", s3Base, identifier, objectName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, file)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Authorization", fmt.Sprintf("LOW %s:%s", u.accessKey, u.secretKey))
	req.Header.Set("Content-Type", "audio/mpeg")
	req.Header.Set("x-amz-auto-make-bucket", "1")
	req.Header.Set("x-archive-meta-mediatype", "audio")
	req.Header.Set("x-archive-meta-collection", "opensource_audio")
	setMetaHeader(req, "title", meta.Title)
	setMetaHeader(req, "creator", meta.Creator)
	setMetaHeader(req, "date", meta.Date)
	setMetaHeader(req, "subject", meta.Subject)
	setMetaHeader(req, "originalurl", meta.External)

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// setMetaHeader attaches an x-archive-meta header, skipping empty values and
// newlines the S3 gateway rejects.
func setMetaHeader(req *http.Request, name, value string) {
	if value == "" {
		return
	}
	for _, c := range value {
		if c == '\n' || c == '\r' {
			return
		}
	}
	req.Header.Set("x-archive-meta-"+name, value)
}
