package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const devSecretKey = "c9=v0x)lq$3n!k8r+perception#dev$4z@w1^y7e(a6u2m"

type (
	Config struct {
		Env       string
		Debug     bool
		TestMode  bool
		AppName   string
		Build     string
		SecretKey string

		API struct {
			BaseURL string
		}

		Server struct {
			Address         string
			DebugHost       string
			ShutdownTimeout time.Duration
		}

		Session struct {
			CookieName   string
			CookieSecure bool
			CookieMaxAge time.Duration
		}

		Google struct {
			ClientID string
		}

		RollbarToken string

		CLI struct {
			TokenPath string
		}
	}
)

// NewConfig loads the configuration for the current ENV (DEV by default).
// Values come from the environment, prefixed with the env name (eg. PROD_API_BASEURL),
// after loading config/.env.<env> if it exists.
func NewConfig() (*Config, error) {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Perception")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", devSecretKey)
	v.SetDefault("api.baseURL", "http://127.0.0.1:8000")
	v.SetDefault("server.address", ":3000")
	v.SetDefault("server.debugHost", "")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("session.cookieName", "auth-storage")
	v.SetDefault("session.cookieSecure", false)
	v.SetDefault("session.cookieMaxAge", 7*24*time.Hour)
	v.SetDefault("google.clientID", "")
	v.SetDefault("rollbar.token", "")
	v.SetDefault("cli.tokenPath", defaultTokenPath())

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := &Config{
		Env:          env,
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbar.token"),
	}
	conf.API.BaseURL = strings.TrimRight(v.GetString("api.baseURL"), "/")
	conf.Server.Address = v.GetString("server.address")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Session.CookieName = v.GetString("session.cookieName")
	conf.Session.CookieSecure = v.GetBool("session.cookieSecure")
	conf.Session.CookieMaxAge = v.GetDuration("session.cookieMaxAge")
	conf.Google.ClientID = v.GetString("google.clientID")
	conf.CLI.TokenPath = v.GetString("cli.tokenPath")

	if conf.API.BaseURL == "" {
		return nil, errors.New("api.baseURL is required")
	}
	if !conf.Debug && conf.SecretKey == devSecretKey {
		return nil, errors.New("secretKey must be set outside of debug mode")
	}
	return conf, nil
}

func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "perception", "auth.db")
}
