package speech

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/talkrally/platform/internal/config"
	"github.com/talkrally/platform/internal/conversation"
	apperrors "github.com/talkrally/platform/internal/errors"
	"github.com/talkrally/platform/internal/resilience"
)

// Client implements Engine against the OpenAI API. All calls run behind
// a shared circuit breaker with retry on transient failures.
type Client struct {
	api     openai.Client
	cfg     *config.Config
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

// NewClient builds an Engine from platform configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		api:     openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg:     cfg,
		breaker: resilience.NewBreaker(resilience.SpeechConfig()),
		retry:   resilience.SpeechRetryConfig(),
	}
}

// Transcribe sends one encoded utterance to the transcription model.
// Whitespace-only results collapse to the empty string.
func (c *Client) Transcribe(ctx context.Context, data []byte, mime string) (string, error) {
	text, err := resilience.ExecuteWithResult(c.breaker, func() (string, error) {
		var out string
		err := resilience.Retry(ctx, c.retry, func() error {
			resp, err := c.api.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
				Model:    openai.AudioModel(c.cfg.TranscribeModel),
				File:     openai.File(bytes.NewReader(data), "utterance.wav", mime),
				Language: openai.String(c.cfg.Language),
			})
			if err != nil {
				return classify(err)
			}
			out = resp.Text
			return nil
		})
		return out, err
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeTranscriptionFailed, "transcribe utterance")
	}
	return strings.TrimSpace(text), nil
}

// Reply asks the chat model for the persona's next line.
func (c *Client) Reply(ctx context.Context, msgs []conversation.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            toChatMessages(msgs),
		Model:               openai.ChatModel(c.cfg.ChatModel),
		Temperature:         openai.Float(c.cfg.Temperature),
		MaxCompletionTokens: openai.Int(int64(c.cfg.MaxReplyTokens)),
	}

	text, err := resilience.ExecuteWithResult(c.breaker, func() (string, error) {
		var out string
		err := resilience.Retry(ctx, c.retry, func() error {
			resp, err := c.api.Chat.Completions.New(ctx, params)
			if err != nil {
				return classify(err)
			}
			if len(resp.Choices) == 0 {
				return errors.New("no choices in response")
			}
			out = resp.Choices[0].Message.Content
			return nil
		})
		return out, err
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeGenerationFailed, "generate reply")
	}
	return strings.TrimSpace(text), nil
}

// Synthesize renders text through the speech model.
func (c *Client) Synthesize(ctx context.Context, text string) (Clip, error) {
	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(c.cfg.SpeechModel),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(c.cfg.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(c.cfg.SpeechFormat),
		Speed:          openai.Float(c.cfg.SpeechSpeed),
	}

	clip, err := resilience.ExecuteWithResult(c.breaker, func() (Clip, error) {
		var out Clip
		err := resilience.Retry(ctx, c.retry, func() error {
			resp, err := c.api.Audio.Speech.New(ctx, params)
			if err != nil {
				return classify(err)
			}
			defer resp.Body.Close()
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return apperrors.Wrap(err, apperrors.CodeUnavailable, "read audio stream")
			}
			out = Clip{Data: data, Mime: mimeForFormat(c.cfg.SpeechFormat)}
			return nil
		})
		return out, err
	})
	if err != nil {
		return Clip{}, apperrors.Wrap(err, apperrors.CodeSynthesisFailed, "synthesize speech")
	}
	slog.Debug("speech synthesized", "bytes", len(clip.Data), "mime", clip.Mime)
	return clip, nil
}

// classify tags API errors so the retry layer knows which are transient.
func classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusTooManyRequests:
			return apperrors.Wrap(err, apperrors.CodeRateLimited, "rate limited")
		case apierr.StatusCode >= http.StatusInternalServerError:
			return apperrors.Wrap(err, apperrors.CodeUnavailable, "server error")
		}
	}
	return err
}

func toChatMessages(msgs []conversation.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case conversation.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case conversation.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func mimeForFormat(format string) string {
	switch format {
	case "wav":
		return "audio/wav"
	case "opus":
		return "audio/ogg"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}
