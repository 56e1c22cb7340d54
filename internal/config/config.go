// Package config handles platform configuration
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all tunables for the voice pipeline. Values come from the
// environment with sensible defaults; the persona file can override the
// conversational fields.
type Config struct {
	HTTPAddr string

	// Capture / VAD
	SampleRate      int
	FramesPerBuffer int
	VADThreshold    float64       // normalized volume 0..1
	Hangover        time.Duration // silence before an utterance closes
	MaxUtterance    time.Duration // hard ceiling per utterance

	// Remote speech collaborators
	APIKey          string
	ChatModel       string
	TranscribeModel string
	SpeechModel     string
	Voice           string
	SpeechFormat    string
	SpeechSpeed     float64
	Language        string
	Temperature     float64
	MaxReplyTokens  int

	// Conversation
	Persona     string
	PersonaFile string
	ApologyText string

	// Playback policy override: "" (probe), "allowed", "muted", "disallowed"
	PlaybackPolicy string
}

func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8000"),

		SampleRate:      getEnvInt("SAMPLE_RATE", 16000),
		FramesPerBuffer: getEnvInt("FRAMES_PER_BUFFER", 256),
		VADThreshold:    getEnvFloat("VAD_THRESHOLD", 0.01),
		Hangover:        getEnvMs("HANGOVER_MS", 2000),
		MaxUtterance:    getEnvMs("MAX_UTTERANCE_MS", 5000),

		APIKey:          os.Getenv("OPENAI_API_KEY"),
		ChatModel:       getEnv("CHAT_MODEL", "gpt-4o"),
		TranscribeModel: getEnv("TRANSCRIBE_MODEL", "whisper-1"),
		SpeechModel:     getEnv("SPEECH_MODEL", "tts-1"),
		Voice:           getEnv("SPEECH_VOICE", "alloy"),
		SpeechFormat:    getEnv("SPEECH_FORMAT", "mp3"),
		SpeechSpeed:     getEnvFloat("SPEECH_SPEED", 1.0),
		Language:        getEnv("LANGUAGE", "ja"),
		Temperature:     getEnvFloat("TEMPERATURE", 0.7),
		MaxReplyTokens:  getEnvInt("MAX_REPLY_TOKENS", 500),

		Persona:     getEnv("PERSONA", defaultPersona),
		PersonaFile: getEnv("PERSONA_FILE", ""),
		ApologyText: getEnv("APOLOGY_TEXT", defaultApology),

		PlaybackPolicy: getEnv("PLAYBACK_POLICY", ""),
	}
}

const (
	defaultPersona = "あなたは優しく親切な顧客です。営業マンとの会話を想定して対応してください。"
	defaultApology = "すみません、うまく聞き取れませんでした。もう一度お願いします。"
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvMs(key string, defMs int) time.Duration {
	return time.Duration(getEnvInt(key, defMs)) * time.Millisecond
}
