package main

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"tasktrail/internal/config"
)

// overrides maps viper keys (flags and TASKTRAIL_* env vars) onto config fields.
var overrides = []struct {
	key   string
	apply func(*config.Config, string)
}{
	{"addr", func(c *config.Config, v string) { c.Server.Addr = v }},
	{"base-path", func(c *config.Config, v string) { c.Server.BasePath = v }},
	{"driver", func(c *config.Config, v string) { c.Store.Driver = v }},
	{"mongo-uri", func(c *config.Config, v string) { c.Store.MongoURI = v }},
	{"mongo-database", func(c *config.Config, v string) { c.Store.MongoDatabase = v }},
	{"jwt-secret", func(c *config.Config, v string) { c.Auth.JWTSecret = v }},
	{"token-ttl", func(c *config.Config, v string) { c.Auth.TokenTTL = v }},
	{"log-level", func(c *config.Config, v string) { c.Log.Level = v }},
	{"log-format", func(c *config.Config, v string) { c.Log.Format = v }},
}

// loadDotEnv reads .env from the working directory and the workspace. Missing files are fine.
func loadDotEnv(workspace string) {
	_ = godotenv.Load()
	if workspace != "" && workspace != "." {
		_ = godotenv.Load(filepath.Join(workspace, ".env"))
	}
}

// resolveConfig layers flags and env over tasktrail.yml over the defaults.
func resolveConfig(v *viper.Viper) (*config.Config, error) {
	workspace := v.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		if v.IsSet(o.key) {
			o.apply(cfg, strings.TrimSpace(v.GetString(o.key)))
		}
	}
	if cfg.Store.Workspace == "" {
		cfg.Store.Workspace = workspace
	} else if !filepath.IsAbs(cfg.Store.Workspace) {
		cfg.Store.Workspace = filepath.Join(workspace, cfg.Store.Workspace)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const redacted = "********"

// redactConfig hides the signing secret and any password in the mongo URI.
func redactConfig(cfg config.Config) config.Config {
	if cfg.Auth.JWTSecret != "" {
		cfg.Auth.JWTSecret = redacted
	}
	cfg.Store.MongoURI = redactURI(cfg.Store.MongoURI)
	return cfg
}

func redactURI(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	if u.User == nil {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), redacted)
	return u.String()
}

// validationResult is the --json output of config validate.
func validationResult(err error) map[string]any {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return map[string]any{"ok": err == nil, "error": msg}
}
