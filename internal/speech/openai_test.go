package speech

import (
	"errors"
	"testing"

	openai "github.com/openai/openai-go/v3"

	"github.com/talkrally/platform/internal/conversation"
	apperrors "github.com/talkrally/platform/internal/errors"
)

func TestToChatMessages(t *testing.T) {
	msgs := []conversation.Message{
		{Role: conversation.RoleSystem, Content: "persona"},
		{Role: conversation.RoleUser, Content: "hello"},
		{Role: conversation.RoleAssistant, Content: "hi there"},
	}
	out := toChatMessages(msgs)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	if out[0].OfSystem == nil {
		t.Error("first message should be a system message")
	}
	if out[1].OfUser == nil {
		t.Error("second message should be a user message")
	}
	if out[2].OfAssistant == nil {
		t.Error("third message should be an assistant message")
	}
}

func TestClassify(t *testing.T) {
	rateLimited := classify(&openai.Error{StatusCode: 429})
	if apperrors.CodeOf(rateLimited) != apperrors.CodeRateLimited {
		t.Errorf("429 classified as %v", apperrors.CodeOf(rateLimited))
	}
	serverErr := classify(&openai.Error{StatusCode: 503})
	if apperrors.CodeOf(serverErr) != apperrors.CodeUnavailable {
		t.Errorf("503 classified as %v", apperrors.CodeOf(serverErr))
	}
	badRequest := classify(&openai.Error{StatusCode: 400})
	if apperrors.IsRetryable(badRequest) {
		t.Error("400 must not be retryable")
	}
	plain := errors.New("boom")
	if classify(plain) != plain {
		t.Error("non-API errors should pass through unchanged")
	}
}

func TestMimeForFormat(t *testing.T) {
	cases := map[string]string{
		"mp3":  "audio/mpeg",
		"wav":  "audio/wav",
		"opus": "audio/ogg",
		"aac":  "audio/aac",
		"flac": "audio/flac",
		"":     "audio/mpeg",
	}
	for format, want := range cases {
		if got := mimeForFormat(format); got != want {
			t.Errorf("mimeForFormat(%q) = %q, want %q", format, got, want)
		}
	}
}
