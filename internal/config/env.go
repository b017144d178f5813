// Package config loads StreamAgent's process configuration, its reloadable
// runtime settings, and the character files agents stream as.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BTreeMap/StreamAgent/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for StreamAgent state data
	DefaultStateDir = "/var/lib/streamagent"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "streamagent.db"
	// DefaultSettingsFileName is the runtime settings file inside the state dir
	DefaultSettingsFileName = "agent.properties"
	// DefaultAPIAddr is where the status API listens
	DefaultAPIAddr = ":8080"
	// DefaultHeartbeatCron sends a scene heartbeat every minute
	DefaultHeartbeatCron = "* * * * *"
	// DefaultCommentLimit is how many unread comments a fetch asks for
	DefaultCommentLimit = 15
	// DefaultMaxStructuredSteps caps oracle calls per structured run
	DefaultMaxStructuredSteps = 40
)

// Env holds configuration read from the environment and .env file.
type Env struct {
	StreamAPIURL string
	StreamAPIKey string

	LLMProvider       string
	OpenAIKey         string
	OpenAIModelSmall  string
	OpenAIModelMedium string
	GeminiKey         string
	GeminiModel       string
	GenAIDebug        bool

	PlayHTKey    string
	PlayHTUserID string
	PlayHTVoice  string

	StateDir string
	DBDSN    string
	DBDriver string
	APIAddr  string

	SettingsPath string
	Characters   []string

	CommentLimit              int
	HeartbeatCron             string
	MaxStructuredSteps        int
	PublishStructuredThoughts bool
}

// LoadEnv loads .env (when present) and reads every StreamAgent variable.
// Unset values get their defaults; a DSN defaults to SQLite in the state dir.
func LoadEnv() Env {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	env := Env{
		StreamAPIURL:              os.Getenv("STREAM_API_URL"),
		StreamAPIKey:              os.Getenv("STREAM_API_KEY"),
		LLMProvider:               os.Getenv("LLM_PROVIDER"),
		OpenAIKey:                 os.Getenv("OPENAI_API_KEY"),
		OpenAIModelSmall:          os.Getenv("OPENAI_MODEL_SMALL"),
		OpenAIModelMedium:         os.Getenv("OPENAI_MODEL_MEDIUM"),
		GeminiKey:                 os.Getenv("GEMINI_API_KEY"),
		GeminiModel:               os.Getenv("GEMINI_MODEL"),
		GenAIDebug:                util.ParseBoolEnv("GENAI_DEBUG", false),
		PlayHTKey:                 os.Getenv("PLAYHT_API_KEY"),
		PlayHTUserID:              os.Getenv("PLAYHT_USER_ID"),
		PlayHTVoice:               os.Getenv("PLAYHT_VOICE"),
		StateDir:                  os.Getenv("STREAMAGENT_STATE_DIR"),
		DBDSN:                     os.Getenv("DATABASE_DSN"),
		DBDriver:                  os.Getenv("DB_DRIVER"),
		APIAddr:                   os.Getenv("API_ADDR"),
		SettingsPath:              os.Getenv("AGENT_SETTINGS"),
		Characters:                SplitList(os.Getenv("CHARACTERS")),
		CommentLimit:              parseIntEnv("COMMENT_FETCH_LIMIT", DefaultCommentLimit),
		HeartbeatCron:             os.Getenv("HEARTBEAT_CRON"),
		MaxStructuredSteps:        parseIntEnv("MAX_STRUCTURED_STEPS", DefaultMaxStructuredSteps),
		PublishStructuredThoughts: util.ParseBoolEnv("PUBLISH_STRUCTURED_THOUGHTS", false),
	}

	if env.StateDir == "" {
		env.StateDir = DefaultStateDir
		slog.Debug("No STREAMAGENT_STATE_DIR set, using default", "default_state_dir", env.StateDir)
	}
	if env.DBDSN == "" {
		env.DBDSN = filepath.Join(env.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", env.DBDSN)
	}
	if env.SettingsPath == "" {
		env.SettingsPath = filepath.Join(env.StateDir, DefaultSettingsFileName)
	}
	if env.APIAddr == "" {
		env.APIAddr = DefaultAPIAddr
	}
	if env.HeartbeatCron == "" {
		env.HeartbeatCron = DefaultHeartbeatCron
	}

	slog.Debug("environment variables loaded",
		"STREAM_API_URL", env.StreamAPIURL,
		"STREAM_API_KEY_SET", env.StreamAPIKey != "",
		"LLM_PROVIDER", env.LLMProvider,
		"OPENAI_API_KEY_SET", env.OpenAIKey != "",
		"GEMINI_API_KEY_SET", env.GeminiKey != "",
		"PLAYHT_API_KEY_SET", env.PlayHTKey != "",
		"STREAMAGENT_STATE_DIR", env.StateDir,
		"DATABASE_DSN_SET", env.DBDSN != "",
		"DB_DRIVER", env.DBDriver,
		"API_ADDR", env.APIAddr,
		"AGENT_SETTINGS", env.SettingsPath,
		"CHARACTERS", len(env.Characters),
		"COMMENT_FETCH_LIMIT", env.CommentLimit,
		"HEARTBEAT_CRON", env.HeartbeatCron,
		"MAX_STRUCTURED_STEPS", env.MaxStructuredSteps)

	return env
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIntEnv(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		slog.Warn("parseIntEnv: invalid positive integer, using default", "key", key, "value", val, "default", def)
		return def
	}
	return n
}
