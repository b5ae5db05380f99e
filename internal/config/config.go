package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the judge API.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	JWTSecret       string
	JudgeToken      string
	JudgeDispatch   string
	JudgeChannel    string
	JudgeTimeZone   *time.Location
	ProblemCacheTTL time.Duration
	PollInterval    time.Duration
	Git             GitConfig
}

// GitConfig describes the git hosting layout and the helper used to modify it.
type GitConfig struct {
	HelperPath    string
	HelperTimeout time.Duration
	StagingDir    string
	AdminDir      string
	RepoRoot      string
	TemplateRepo  string
	TokenLength   int
}

// KeyDir is where the git hosting layer reads authorized public keys from.
func (g GitConfig) KeyDir() string {
	return filepath.Join(g.AdminDir, "keydir")
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// ShellConfig is what the git login shell needs to reach the API and the repositories.
type ShellConfig struct {
	APIURL       string
	RepoRoot     string
	PollInterval time.Duration
}

func newViper() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ADA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.port", "3333")
	v.SetDefault("git.repo_root", "/home/git/repositories")
	return v
}

// LoadShell reads the subset of settings used by the judge shell.
func LoadShell() (ShellConfig, error) {
	v := newViper()
	v.SetDefault("api.url", "http://127.0.0.1:"+strings.TrimPrefix(v.GetString("app.port"), ":"))
	v.SetDefault("shell.poll_interval", "1s")

	interval, err := parseDuration(v, "shell.poll_interval")
	if err != nil {
		return ShellConfig{}, err
	}

	return ShellConfig{
		APIURL:       strings.TrimRight(v.GetString("api.url"), "/"),
		RepoRoot:     v.GetString("git.repo_root"),
		PollInterval: interval,
	}, nil
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	v := newViper()

	v.SetDefault("app.name", "ADA Judge")
	v.SetDefault("app.env", "development")
	v.SetDefault("judge.dispatch", "none")
	v.SetDefault("judge.channel", "ada")
	v.SetDefault("judge.timezone", "Asia/Taipei")
	v.SetDefault("problem.cache_ttl", "30s")
	v.SetDefault("poll.interval", "2s")
	v.SetDefault("git.helper", "/home/git/cp")
	v.SetDefault("git.helper_timeout", "10s")
	v.SetDefault("git.staging_dir", "/tmp/judge_git")
	v.SetDefault("git.admin_dir", "/home/git/gitosis-admin")
	v.SetDefault("git.template", "")
	v.SetDefault("git.token_length", 20)

	cacheTTL, err := parseDuration(v, "problem.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	pollInterval, err := parseDuration(v, "poll.interval")
	if err != nil {
		return Config{}, err
	}
	helperTimeout, err := parseDuration(v, "git.helper_timeout")
	if err != nil {
		return Config{}, err
	}

	location, err := time.LoadLocation(v.GetString("judge.timezone"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid judge timezone: %w", err)
	}

	git := GitConfig{
		HelperPath:    v.GetString("git.helper"),
		HelperTimeout: helperTimeout,
		StagingDir:    v.GetString("git.staging_dir"),
		AdminDir:      v.GetString("git.admin_dir"),
		RepoRoot:      v.GetString("git.repo_root"),
		TemplateRepo:  v.GetString("git.template"),
		TokenLength:   v.GetInt("git.token_length"),
	}
	if git.TemplateRepo == "" {
		git.TemplateRepo = filepath.Join(git.RepoRoot, "init.git")
	}
	if git.TokenLength < 20 {
		git.TokenLength = 20
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		JWTSecret:       v.GetString("jwt.secret"),
		JudgeToken:      v.GetString("judge.token"),
		JudgeDispatch:   strings.ToLower(v.GetString("judge.dispatch")),
		JudgeChannel:    v.GetString("judge.channel"),
		JudgeTimeZone:   location,
		ProblemCacheTTL: cacheTTL,
		PollInterval:    pollInterval,
		Git:             git,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.JudgeToken == "" {
		return Config{}, fmt.Errorf("judge token must be provided")
	}

	switch cfg.JudgeDispatch {
	case "none", "redis", "nats":
	default:
		return Config{}, fmt.Errorf("unsupported judge dispatch %q", cfg.JudgeDispatch)
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
