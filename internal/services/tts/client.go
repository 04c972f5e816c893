// Package tts synthesizes narration audio from SSML via the Google Cloud
// Text-to-Speech REST API and assembles per-episode MP3 files.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services"
)

const synthesizeEndpoint = "https://texttospeech.googleapis.com/v1/text:synthesize"

// Client calls the synthesis endpoint for a single SSML payload.
type Client struct {
	apiKey string
	voice  string
	lang   string
	rate   float64
	pitch  float64
	http   *http.Client
}

// NewClient builds a synthesis client from configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.TTS.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tts", "init",
			"missing tts.api_key", nil)
	}
	return &Client{
		apiKey: cfg.TTS.APIKey,
		voice:  cfg.TTS.Voice,
		lang:   cfg.TTS.Language,
		rate:   cfg.TTS.SpeakingRate,
		pitch:  cfg.TTS.Pitch,
		http:   &http.Client{Timeout: time.Duration(cfg.TTS.TimeoutSeconds) * time.Second},
	}, nil
}

type synthesizeRequest struct {
	Input struct {
		SSML string `json:"ssml"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate,omitempty"`
		Pitch         float64 `json:"pitch,omitempty"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize renders one SSML payload to MP3 bytes.
func (c *Client) Synthesize(ctx context.Context, ssmlPayload string) ([]byte, error) {
	var reqBody synthesizeRequest
	reqBody.Input.SSML = ssmlPayload
	reqBody.Voice.LanguageCode = c.lang
	reqBody.Voice.Name = c.voice
	reqBody.AudioConfig.AudioEncoding = "MP3"
	reqBody.AudioConfig.SpeakingRate = c.rate
	reqBody.AudioConfig.Pitch = c.pitch

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode synthesis request: %w", err)
	}

	endpoint := synthesizeEndpoint + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "tts", "synthesize", "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "tts", "synthesize", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		marker := services.ErrTransient
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden {
			marker = services.ErrConfiguration
		}
		return nil, services.Wrap(marker, "tts", "synthesize",
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(body, 200)), nil)
	}

	var parsed synthesizeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode synthesis response: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(parsed.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "tts", "synthesize",
			"empty audio content", nil)
	}
	return audio, nil
}

func truncate(body []byte, limit int) string {
	if len(body) > limit {
		body = body[:limit]
	}
	return string(body)
}
