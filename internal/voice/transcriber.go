package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MEKXH/intentpilot/internal/config"
)

const (
	defaultSTTModel   = "whisper-1"
	defaultSTTBaseURL = "https://api.openai.com/v1"
	defaultSTTTimeout = 30 * time.Second
	maxAudioBytes     = 25 * 1024 * 1024
)

// Clip is one recorded utterance.
type Clip struct {
	Name     string
	MIMEType string
	Audio    []byte
}

var audioTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".webm": "audio/webm",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
}

// LoadClip reads an audio file and infers its MIME type from the extension.
func LoadClip(path string) (Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, fmt.Errorf("read audio clip: %w", err)
	}
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(name))
	mt, ok := audioTypes[ext]
	if !ok {
		mt = mime.TypeByExtension(ext)
	}
	if mt == "" {
		mt = "application/octet-stream"
	}
	return Clip{Name: name, MIMEType: mt, Audio: data}, nil
}

// Transcriber turns a recorded clip into an utterance.
type Transcriber interface {
	Transcribe(ctx context.Context, clip Clip) (string, error)
}

// HTTPTranscriber posts clips to an OpenAI-compatible transcription endpoint.
type HTTPTranscriber struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewTranscriber builds a transcriber from the voice transcriber settings.
func NewTranscriber(cfg config.TranscriberConfig, timeout time.Duration) (*HTTPTranscriber, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("voice.transcriber.api_key is required for audio input")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultSTTBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultSTTModel
	}
	if timeout <= 0 {
		timeout = defaultSTTTimeout
	}
	return &HTTPTranscriber{
		endpoint: strings.TrimRight(baseURL, "/") + "/audio/transcriptions",
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Transcribe uploads the clip and returns the recognized text.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, clip Clip) (string, error) {
	switch {
	case len(clip.Audio) == 0:
		return "", fmt.Errorf("audio clip %q is empty", clip.Name)
	case len(clip.Audio) > maxAudioBytes:
		return "", fmt.Errorf("audio clip %q too large: %d bytes (max %d)", clip.Name, len(clip.Audio), maxAudioBytes)
	}

	body, contentType, err := clipForm(clip, t.model)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech service unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("transcription failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", fmt.Errorf("no speech recognized in %q", clip.Name)
	}
	return text, nil
}

func clipForm(clip Clip, model string) (*bytes.Buffer, string, error) {
	name := strings.TrimSpace(clip.Name)
	if name == "" {
		name = "utterance.wav"
	}
	mt := strings.TrimSpace(clip.MIMEType)
	if mt == "" {
		mt = "application/octet-stream"
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	h.Set("Content-Type", mt)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(clip.Audio); err != nil {
		return nil, "", err
	}
	for k, v := range map[string]string{"model": model, "language": "en"} {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &body, w.FormDataContentType(), nil
}
