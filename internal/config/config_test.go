package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Clear environment
	envVars := []string{
		"HTTP_ADDR", "SAMPLE_RATE", "FRAMES_PER_BUFFER", "VAD_THRESHOLD",
		"HANGOVER_MS", "MAX_UTTERANCE_MS", "CHAT_MODEL", "TRANSCRIBE_MODEL",
		"SPEECH_MODEL", "SPEECH_VOICE", "SPEECH_FORMAT", "SPEECH_SPEED",
		"LANGUAGE", "TEMPERATURE", "MAX_REPLY_TOKENS", "PERSONA",
		"PERSONA_FILE", "APOLOGY_TEXT", "PLAYBACK_POLICY",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	// Check defaults
	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8000")
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want %d", cfg.SampleRate, 16000)
	}
	if cfg.VADThreshold != 0.01 {
		t.Errorf("VADThreshold = %f, want %f", cfg.VADThreshold, 0.01)
	}
	if cfg.Hangover != 2*time.Second {
		t.Errorf("Hangover = %v, want 2s", cfg.Hangover)
	}
	if cfg.MaxUtterance != 5*time.Second {
		t.Errorf("MaxUtterance = %v, want 5s", cfg.MaxUtterance)
	}
	if cfg.Voice != "alloy" {
		t.Errorf("Voice = %q, want %q", cfg.Voice, "alloy")
	}
	if cfg.SpeechFormat != "mp3" {
		t.Errorf("SpeechFormat = %q, want %q", cfg.SpeechFormat, "mp3")
	}
	if cfg.SpeechSpeed != 1.0 {
		t.Errorf("SpeechSpeed = %f, want 1.0", cfg.SpeechSpeed)
	}
	if cfg.Language != "ja" {
		t.Errorf("Language = %q, want %q", cfg.Language, "ja")
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("Temperature = %f, want 0.7", cfg.Temperature)
	}
	if cfg.MaxReplyTokens != 500 {
		t.Errorf("MaxReplyTokens = %d, want 500", cfg.MaxReplyTokens)
	}
	if cfg.Persona == "" {
		t.Error("Persona should have a default prompt")
	}
	if cfg.ApologyText == "" {
		t.Error("ApologyText should have a default")
	}
}

func TestLoadWithEnv(t *testing.T) {
	os.Setenv("HTTP_ADDR", ":9000")
	os.Setenv("VAD_THRESHOLD", "0.05")
	os.Setenv("HANGOVER_MS", "600")
	os.Setenv("MAX_UTTERANCE_MS", "8000")
	os.Setenv("SPEECH_VOICE", "nova")
	os.Setenv("LANGUAGE", "en")
	defer func() {
		for _, v := range []string{"HTTP_ADDR", "VAD_THRESHOLD", "HANGOVER_MS", "MAX_UTTERANCE_MS", "SPEECH_VOICE", "LANGUAGE"} {
			os.Unsetenv(v)
		}
	}()

	cfg := Load()

	if cfg.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9000")
	}
	if cfg.VADThreshold != 0.05 {
		t.Errorf("VADThreshold = %f, want 0.05", cfg.VADThreshold)
	}
	if cfg.Hangover != 600*time.Millisecond {
		t.Errorf("Hangover = %v, want 600ms", cfg.Hangover)
	}
	if cfg.MaxUtterance != 8*time.Second {
		t.Errorf("MaxUtterance = %v, want 8s", cfg.MaxUtterance)
	}
	if cfg.Voice != "nova" {
		t.Errorf("Voice = %q, want %q", cfg.Voice, "nova")
	}
	if cfg.Language != "en" {
		t.Errorf("Language = %q, want %q", cfg.Language, "en")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	os.Setenv("SAMPLE_RATE", "not-a-number")
	os.Setenv("VAD_THRESHOLD", "abc")
	defer func() {
		os.Unsetenv("SAMPLE_RATE")
		os.Unsetenv("VAD_THRESHOLD")
	}()

	cfg := Load()

	if cfg.SampleRate != 16000 {
		t.Errorf("invalid SAMPLE_RATE should fall back to 16000, got %d", cfg.SampleRate)
	}
	if cfg.VADThreshold != 0.01 {
		t.Errorf("invalid VAD_THRESHOLD should fall back to 0.01, got %f", cfg.VADThreshold)
	}
}

func TestApplyPersonaFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persona.yaml")
	content := `prompt: "You are a polite customer."
voice: shimmer
language: en
temperature: 0.9
max_reply_tokens: 200
speed: 1.2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load()
	cfg.PersonaFile = path
	apologyBefore := cfg.ApologyText

	if err := ApplyPersonaFile(cfg); err != nil {
		t.Fatalf("ApplyPersonaFile() = %v", err)
	}

	if cfg.Persona != "You are a polite customer." {
		t.Errorf("Persona = %q", cfg.Persona)
	}
	if cfg.Voice != "shimmer" {
		t.Errorf("Voice = %q, want shimmer", cfg.Voice)
	}
	if cfg.Language != "en" {
		t.Errorf("Language = %q, want en", cfg.Language)
	}
	if cfg.Temperature != 0.9 {
		t.Errorf("Temperature = %f, want 0.9", cfg.Temperature)
	}
	if cfg.MaxReplyTokens != 200 {
		t.Errorf("MaxReplyTokens = %d, want 200", cfg.MaxReplyTokens)
	}
	if cfg.SpeechSpeed != 1.2 {
		t.Errorf("SpeechSpeed = %f, want 1.2", cfg.SpeechSpeed)
	}
	// Unset fields keep existing values
	if cfg.ApologyText != apologyBefore {
		t.Error("ApologyText should be unchanged when persona file omits it")
	}
}

func TestApplyPersonaFileMissing(t *testing.T) {
	cfg := Load()
	cfg.PersonaFile = ""

	if err := ApplyPersonaFile(cfg); err != nil {
		t.Errorf("no persona file configured should not error, got %v", err)
	}

	cfg.PersonaFile = "/nonexistent/persona.yaml"
	if err := ApplyPersonaFile(cfg); err == nil {
		t.Error("missing configured persona file should error")
	}
}
