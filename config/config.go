package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the session core needs to reach its collaborators.
type Config struct {
	// Coaching service websocket, e.g. ws://localhost:8766
	SocketURL string

	// Session identity
	Culture      string
	InstrumentID string
	TutorID      string
	SessionsDir  string

	// Transcript (narration script) collaborator
	TranscriptURL string
	TranscriptKey string

	// Speech synthesis: "yandex" (SpeechKit gRPC) or "http" (proxy endpoint)
	SpeechBackend  string
	SpeechURL      string
	SpeechKey      string
	YandexAPIKey   string
	YandexFolderID string

	// Music generation service
	GenerationURL string
	GenerationKey string

	// Audio capture
	SampleRate int
}

func Load() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		return nil, err
	}

	return &Config{
		SocketURL:      getenv("SOCKET_URL", "ws://localhost:8766"),
		Culture:        getenv("CULTURE", "western"),
		InstrumentID:   getenv("INSTRUMENT_ID", "guitar"),
		TutorID:        os.Getenv("TUTOR_ID"),
		SessionsDir:    getenv("SESSIONS_DIR", "sessions"),
		TranscriptURL:  os.Getenv("TRANSCRIPT_URL"),
		TranscriptKey:  os.Getenv("TRANSCRIPT_API_KEY"),
		SpeechBackend:  getenv("SPEECH_BACKEND", "http"),
		SpeechURL:      os.Getenv("SPEECH_URL"),
		SpeechKey:      os.Getenv("SPEECH_API_KEY"),
		YandexAPIKey:   os.Getenv("YANDEX_API_KEY"),
		YandexFolderID: os.Getenv("YANDEX_FOLDER_ID"),
		GenerationURL:  getenv("GENERATION_URL", "https://api.sunoapi.org"),
		GenerationKey:  os.Getenv("GENERATION_API_KEY"),
		SampleRate:     getenvInt("SAMPLE_RATE", 44100),
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
