package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr          string
	DBUrl         string
	TokenSecret   string
	TokenTTL      time.Duration
	RefreshTTL    time.Duration
	SurveyURL     string
	WebhookSecret string
	FlatFields    []string
	Admin         AdminAccount
	Debug         bool
	LogJSON       bool
}

// AdminAccount is created at startup when the user table is empty.
type AdminAccount struct {
	Username string
	Email    string
	Password string
}

func (a AdminAccount) Enabled() bool {
	return a.Username != ""
}

// Load reads an optional .env file into the environment, then parses the
// command line. Flags win over environment variables.
func Load(args []string) (Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse(args)
}

func Parse(args []string) (cfg Config, err error) {
	fs := flag.NewFlagSet("survey-intake", flag.ContinueOnError)

	var host string
	fs.StringVar(&host, "host", env("HOST", "0.0.0.0"), "listen host name")
	var port uint
	fs.UintVar(&port, "port", envUint("PORT", 80), "listen port number")
	fs.StringVar(&cfg.DBUrl, "db-url", env("DATABASE_URL", "survey.sqlite"), "path to SQLite3 DB file, or mysql://<dsn>")
	fs.StringVar(&cfg.TokenSecret, "token-secret", env("SECRET_KEY", ""), "secret key for token encryption and decryption")
	var ttl uint
	fs.UintVar(&ttl, "token-ttl", envUint("TOKEN_TTL", 1800), "access token TTL in seconds")
	fs.DurationVar(&cfg.RefreshTTL, "refresh-ttl", envDuration("REFRESH_TTL", 12*time.Hour), "refresh token lifetime")
	fs.StringVar(&cfg.SurveyURL, "survey-url", env("SURVEY_URL", ""), "public URL of the survey form")
	fs.StringVar(&cfg.WebhookSecret, "webhook-secret", env("WEBHOOK_SECRET", ""), "shared secret for webhook request hashes (optional)")
	var flatFields string
	fs.StringVar(&flatFields, "flat-fields", env("FLAT_FIELDS", ""), "comma separated payload fields that are never grouped")
	fs.StringVar(&cfg.Admin.Username, "admin-user", env("ADMIN_USER", ""), "username of the admin created on first start")
	fs.StringVar(&cfg.Admin.Email, "admin-email", env("ADMIN_EMAIL", ""), "email of the admin created on first start")
	fs.StringVar(&cfg.Admin.Password, "admin-password", env("ADMIN_PASSWORD", ""), "password of the admin created on first start")
	fs.BoolVar(&cfg.Debug, "debug", envBool("DEBUG"), "log at DEBUG level")
	fs.BoolVar(&cfg.LogJSON, "log-json", envBool("LOG_JSON"), "log as JSON")

	err = fs.Parse(args)
	if err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Second
	cfg.FlatFields = splitList(flatFields)

	err = cfg.Validate()
	return
}

// Validate reports every invalid setting at once.
func (cfg Config) Validate() error {
	var result *multierror.Error
	if cfg.TokenSecret == "" {
		result = multierror.Append(result, errors.New("missing parameter -token-secret"))
	}
	if cfg.TokenTTL <= 0 {
		result = multierror.Append(result, errors.New("-token-ttl must be positive"))
	}
	if cfg.RefreshTTL < cfg.TokenTTL {
		result = multierror.Append(result, errors.New("-refresh-ttl must not be shorter than -token-ttl"))
	}
	if cfg.DBUrl == "" {
		result = multierror.Append(result, errors.New("missing parameter -db-url"))
	}
	if cfg.Admin.Enabled() && (cfg.Admin.Email == "" || cfg.Admin.Password == "") {
		result = multierror.Append(result, errors.New("-admin-user needs -admin-email and -admin-password"))
	}
	return result.ErrorOrNil()
}

// RefreshMaxAge is the lifetime of the refresh token cookie, in seconds.
func (cfg Config) RefreshMaxAge() int {
	return int(cfg.RefreshTTL.Seconds())
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envUint(key string, def uint) uint {
	n, err := strconv.ParseUint(os.Getenv(key), 10, 0)
	if err != nil {
		return def
	}
	return uint(n)
}

func envDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return d
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func splitList(s string) (list []string) {
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			list = append(list, item)
		}
	}
	return
}
