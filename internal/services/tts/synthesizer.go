package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/logging"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/ssml"
)

// SegmentClient renders one SSML payload to audio bytes.
type SegmentClient interface {
	Synthesize(ctx context.Context, ssmlPayload string) ([]byte, error)
}

// Result describes the audio artifact for one entry.
type Result struct {
	Path     string
	Filename string
	// Generated is false when the target file already existed and synthesis
	// was skipped. Skipped synthesis must not be billed.
	Generated bool
}

// Synthesizer renders segmented documents into per-episode MP3 files.
type Synthesizer struct {
	client    SegmentClient
	outputDir string
	logger    *slog.Logger
	ffmpegBin string
}

// NewSynthesizer builds a synthesizer writing MP3s under outputDir. ffmpeg is
// optional; when absent the concatenated segments ship unnormalized.
func NewSynthesizer(client SegmentClient, outputDir string, logger *slog.Logger) *Synthesizer {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		bin = ""
	}
	return &Synthesizer{
		client:    client,
		outputDir: outputDir,
		logger:    logging.NewComponentLogger(logger, "tts"),
		ffmpegBin: bin,
	}
}

// Filename derives the deterministic episode filename from the publication
// timestamp and article link.
func Filename(pubUTC, link string) string {
	stamp := strings.ReplaceAll(pubUTC, ":", "")
	if ts, err := time.Parse(time.RFC3339, pubUTC); err == nil {
		stamp = ts.UTC().Format("20060102-150405")
	}
	return stamp + "-" + LinkSlug(link) + ".mp3"
}

// Synthesize renders the document to its MP3 file. When the target file
// already exists it is reused untouched and Generated reports false.
func (s *Synthesizer) Synthesize(ctx context.Context, doc *ssml.Document, filename string) (*Result, error) {
	path := filepath.Join(s.outputDir, filename)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		s.logger.Info("audio already exists, skipping synthesis",
			logging.String("file", filename))
		return &Result{Path: path, Filename: filename, Generated: false}, nil
	}

	if len(doc.Payloads) == 0 {
		return nil, services.Wrap(services.ErrValidation, "tts", "synthesize",
			"document has no payloads", nil)
	}

	var audio []byte
	for i, payload := range doc.Payloads {
		segment, err := s.client.Synthesize(ctx, payload.SSML)
		if err != nil {
			return nil, fmt.Errorf("segment %d/%d: %w", i+1, len(doc.Payloads), err)
		}
		audio = append(audio, segment...)
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, audio, 0o644); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}

	if s.ffmpegBin != "" {
		if err := s.normalize(ctx, tmp, path); err != nil {
			s.logger.Warn("loudness normalize failed, keeping raw audio",
				logging.String("file", filename), logging.Error(err))
			if err := os.Rename(tmp, path); err != nil {
				return nil, fmt.Errorf("finalize audio: %w", err)
			}
		} else {
			os.Remove(tmp)
		}
	} else {
		if err := os.Rename(tmp, path); err != nil {
			return nil, fmt.Errorf("finalize audio: %w", err)
		}
	}

	s.logger.Info("synthesized episode audio",
		logging.String("file", filename),
		logging.Int("segments", len(doc.Payloads)),
		logging.Int("characters", doc.Characters))
	return &Result{Path: path, Filename: filename, Generated: true}, nil
}

func (s *Synthesizer) normalize(ctx context.Context, in, out string) error {
	cmd := exec.CommandContext(ctx, s.ffmpegBin,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", in,
		"-af", "loudnorm=I=-16:TP=-1.5:LRA=11",
		"-codec:a", "libmp3lame", "-qscale:a", "4",
		out)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(out)
		return services.Wrap(services.ErrExternalTool, "tts", "normalize",
			strings.TrimSpace(string(output)), err)
	}
	return nil
}
