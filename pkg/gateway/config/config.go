package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries all runtime settings for the gateway.
type Config struct {
	Addr string

	// Backing services.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string

	// Black-box model/speech services.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
	TTSVoice      string
	AudioFormat   string

	// Session store.
	SessionTTL time.Duration

	// Orchestrator.
	TurnTimeout          time.Duration
	ToolTimeout          time.Duration
	MaxModelCallsPerTurn int

	// Live voice channel.
	MinAudioBytes       int
	MaxAudioBufferBytes int
	MaxJSONMessageBytes int64
	WSWriteTimeout      time.Duration
	WSReadTimeout       time.Duration
	WSPingInterval      time.Duration
	MaxSessionDuration  time.Duration

	// Telephony.
	ExitPhrases        []string
	GatherTimeout      time.Duration
	MaxPINAttempts     int
	TransferExtensions map[string]string
	DefaultDepartment  string

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

var defaultExitPhrases = []string{
	"exit", "goodbye", "bye", "that's it", "that is it",
	"thank you", "thanks", "done", "finished", "end call", "hang up",
}

var defaultTransferExtensions = map[string]string{
	"support":  "2000",
	"sales":    "2000",
	"general":  "2000",
	"operator": "2000",
}

// LoadFromEnv builds a Config from VOICEDESK_* environment variables.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                 envOr("VOICEDESK_ADDR", ":8080"),
		RedisAddr:            envOr("VOICEDESK_REDIS_ADDR", "localhost:6379"),
		RedisPassword:        os.Getenv("VOICEDESK_REDIS_PASSWORD"),
		RedisDB:              envIntOr("VOICEDESK_REDIS_DB", 0),
		DatabaseURL:          os.Getenv("VOICEDESK_DATABASE_URL"),
		OpenAIAPIKey:         os.Getenv("VOICEDESK_OPENAI_API_KEY"),
		OpenAIBaseURL:        os.Getenv("VOICEDESK_OPENAI_BASE_URL"),
		Model:                envOr("VOICEDESK_MODEL", "gpt-4o-mini"),
		TTSVoice:             envOr("VOICEDESK_TTS_VOICE", "nova"),
		AudioFormat:          envOr("VOICEDESK_AUDIO_FORMAT", "webm"),
		SessionTTL:           envDurationOr("VOICEDESK_SESSION_TTL", time.Hour),
		TurnTimeout:          envDurationOr("VOICEDESK_TURN_TIMEOUT", 25*time.Second),
		ToolTimeout:          envDurationOr("VOICEDESK_TOOL_TIMEOUT", 8*time.Second),
		MaxModelCallsPerTurn: envIntOr("VOICEDESK_MAX_MODEL_CALLS_PER_TURN", 8),
		MinAudioBytes:        envIntOr("VOICEDESK_MIN_AUDIO_BYTES", 1000),
		MaxAudioBufferBytes:  envIntOr("VOICEDESK_MAX_AUDIO_BUFFER_BYTES", 10<<20), // 10 MiB
		MaxJSONMessageBytes:  envInt64Or("VOICEDESK_MAX_JSON_MESSAGE_BYTES", 1<<20),
		WSWriteTimeout:       envDurationOr("VOICEDESK_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadTimeout:        envDurationOr("VOICEDESK_WS_READ_TIMEOUT", 90*time.Second),
		WSPingInterval:       envDurationOr("VOICEDESK_WS_PING_INTERVAL", 20*time.Second),
		MaxSessionDuration:   envDurationOr("VOICEDESK_MAX_SESSION_DURATION", 2*time.Hour),
		GatherTimeout:        envDurationOr("VOICEDESK_GATHER_TIMEOUT", 10*time.Second),
		MaxPINAttempts:       envIntOr("VOICEDESK_MAX_PIN_ATTEMPTS", 3),
		DefaultDepartment:    envOr("VOICEDESK_DEFAULT_DEPARTMENT", "support"),
		ReadHeaderTimeout:    envDurationOr("VOICEDESK_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:          envDurationOr("VOICEDESK_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:  envDurationOr("VOICEDESK_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	cfg.ExitPhrases = splitCSV(os.Getenv("VOICEDESK_EXIT_PHRASES"))
	if len(cfg.ExitPhrases) == 0 {
		cfg.ExitPhrases = append([]string(nil), defaultExitPhrases...)
	}

	cfg.TransferExtensions = parseExtensionMap(os.Getenv("VOICEDESK_TRANSFER_EXTENSIONS"))
	if len(cfg.TransferExtensions) == 0 {
		cfg.TransferExtensions = make(map[string]string, len(defaultTransferExtensions))
		for dept, ext := range defaultTransferExtensions {
			cfg.TransferExtensions[dept] = ext
		}
	}

	if strings.TrimSpace(cfg.Addr) == "" {
		return Config{}, fmt.Errorf("VOICEDESK_ADDR must not be empty")
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_SESSION_TTL must be > 0")
	}
	if cfg.TurnTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_TURN_TIMEOUT must be > 0")
	}
	if cfg.ToolTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_TOOL_TIMEOUT must be > 0")
	}
	if cfg.MaxModelCallsPerTurn <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_MAX_MODEL_CALLS_PER_TURN must be > 0")
	}
	if cfg.MinAudioBytes <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_MIN_AUDIO_BYTES must be > 0")
	}
	if cfg.MaxAudioBufferBytes <= cfg.MinAudioBytes {
		return Config{}, fmt.Errorf("VOICEDESK_MAX_AUDIO_BUFFER_BYTES must be > VOICEDESK_MIN_AUDIO_BYTES")
	}
	if cfg.MaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSReadTimeout < 0 {
		return Config{}, fmt.Errorf("VOICEDESK_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_WS_PING_INTERVAL must be > 0")
	}
	if cfg.MaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_MAX_SESSION_DURATION must be > 0")
	}
	if cfg.GatherTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_GATHER_TIMEOUT must be > 0")
	}
	if cfg.MaxPINAttempts <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_MAX_PIN_ATTEMPTS must be > 0")
	}
	if _, ok := cfg.TransferExtensions[cfg.DefaultDepartment]; !ok {
		return Config{}, fmt.Errorf("VOICEDESK_DEFAULT_DEPARTMENT %q has no transfer extension", cfg.DefaultDepartment)
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// parseExtensionMap parses "support=2000,sales=2001" into a department map.
func parseExtensionMap(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range splitCSV(raw) {
		idx := strings.Index(pair, "=")
		if idx <= 0 || idx == len(pair)-1 {
			continue
		}
		dept := strings.ToLower(strings.TrimSpace(pair[:idx]))
		ext := strings.TrimSpace(pair[idx+1:])
		if dept == "" || ext == "" {
			continue
		}
		out[dept] = ext
	}
	return out
}
