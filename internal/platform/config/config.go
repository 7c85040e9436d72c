package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config holds the server settings. Values come from .env, then the process
// environment, then command-line flags, each overriding the previous.
type Config struct {
	Port         string
	DocumentPath string
	MediaDir     string
	StaticDir    string
	MaxUploadMB  int
	LogLevel     string
	LogFormat    string
}

// MaxUploadBytes returns the upload body cap in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files; with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv returns a Config populated from the environment with defaults.
func FromEnv() Config {
	return Config{
		Port:         GetEnv("PORT", "8080"),
		DocumentPath: GetEnv("DOCUMENT_PATH", "assets/static/index.html"),
		MediaDir:     GetEnv("MEDIA_DIR", "assets/media"),
		StaticDir:    GetEnv("STATIC_DIR", "assets/static"),
		MaxUploadMB:  GetEnvInt("MAX_UPLOAD_MB", 32),
		LogLevel:     GetEnv("LOG_LEVEL", "info"),
		LogFormat:    GetEnv("LOG_FORMAT", "json"),
	}
}

// Parse builds a Config from the environment and then applies args as flags.
// args excludes the program name.
func Parse(args []string) (Config, error) {
	cfg := FromEnv()

	fs := pflag.NewFlagSet("media-wall", pflag.ContinueOnError)
	fs.StringVar(&cfg.Port, "addr", cfg.Port, "listen port")
	fs.StringVar(&cfg.DocumentPath, "document", cfg.DocumentPath, "path of the shared HTML document")
	fs.StringVar(&cfg.MediaDir, "media-dir", cfg.MediaDir, "directory holding uploaded media")
	fs.StringVar(&cfg.StaticDir, "static-dir", cfg.StaticDir, "directory holding home.html and not_found.html")
	fs.IntVar(&cfg.MaxUploadMB, "max-upload-mb", cfg.MaxUploadMB, "maximum upload body size in MiB")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or text")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 32
	}
	return cfg, nil
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}
