package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"

	"github.com/Flarenzy/rirblocks/internal/delegated"
	"github.com/Flarenzy/rirblocks/internal/domain"
	"github.com/Flarenzy/rirblocks/internal/output"
)

var DefaultSources = []string{
	"https://ftp.afrinic.net/pub/stats/afrinic/delegated-afrinic-extended-latest",
	"https://ftp.lacnic.net/pub/stats/lacnic/delegated-lacnic-extended-latest",
	"https://ftp.ripe.net/pub/stats/ripencc/delegated-ripencc-extended-latest",
	"https://ftp.apnic.net/pub/stats/apnic/delegated-apnic-extended-latest",
	"https://ftp.arin.net/pub/stats/arin/delegated-arin-extended-latest",
}

type Config struct {
	Countries     string `arg:"--countries,env:COUNTRIES" default:"JP,US,BR" help:"comma separated ISO 3166 alpha-2 country codes"`
	Sources       string `arg:"--sources,env:RIR_SOURCES" help:"comma separated delegated-extended URLs (default: the five RIRs)"`
	OutputDir     string `arg:"--output-dir,env:OUTPUT_DIR" default:"." help:"directory for generated files, empty disables file output"`
	OutputFormat  string `arg:"--output-format,env:OUTPUT_FORMAT" default:"plain" help:"plain or bind-acl"`
	ReservedMatch string `arg:"--reserved-match,env:RESERVED_MATCH" default:"line" help:"skip lines containing \"reserved\" (line) or only reserved records (status)"`

	DSN      string        `arg:"--dsn,env:DB_CONN" help:"PostgreSQL connection string, stores blocks when set"`
	RedisURL string        `arg:"--redis-url,env:REDIS_URL" help:"redis URL used to cache downloaded sources"`
	CacheTTL time.Duration `arg:"--cache-ttl,env:CACHE_TTL" default:"6h" help:"lifetime of cached sources"`

	FetchAttempts uint64        `arg:"--fetch-attempts,env:FETCH_ATTEMPTS" default:"10" help:"download attempts per source"`
	FetchTimeout  time.Duration `arg:"--fetch-timeout,env:FETCH_TIMEOUT" default:"2m" help:"timeout of a single download attempt"`
	Workers       int           `arg:"--workers,env:WORKERS" default:"4" help:"countries aggregated concurrently"`

	ServeAddr       string        `arg:"--serve-addr,env:SERVE_ADDR" help:"listen address of the HTTP API, enables periodic refresh"`
	RefreshInterval time.Duration `arg:"--refresh-interval,env:REFRESH_INTERVAL" default:"24h" help:"interval between refreshes while serving"`
	ReadTimeout     time.Duration `arg:"--read-timeout,env:READ_TIMEOUT" default:"3s"`
	WriteTimeout    time.Duration `arg:"--write-timeout,env:WRITE_TIMEOUT" default:"3s"`

	LogLevel  string `arg:"--log-level,env:LOG_LEVEL" default:"info" help:"debug, info, warn or error"`
	LogFormat string `arg:"--log-format,env:LOG_FORMAT" default:"text" help:"text, json or logfmt"`

	CountryCodes []string                `arg:"-"`
	SourceURLs   []string                `arg:"-"`
	Format       output.Format           `arg:"-"`
	Reserved     delegated.ReservedMatch `arg:"-"`
}

func (Config) Description() string {
	return "rirblocks aggregates RIR delegated statistics into per-country CIDR block lists"
}

// LoadConfig reads an optional .env file, then parses args and the
// environment. arg.ErrHelp is returned when help was requested.
func LoadConfig(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	p, err := arg.NewParser(arg.Config{Program: "rirblocks"}, &cfg)
	if err != nil {
		return Config{}, err
	}
	if err := p.Parse(args); err != nil {
		if errors.Is(err, arg.ErrHelp) {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	codes, err := parseCountries(c.Countries)
	if err != nil {
		return err
	}
	c.CountryCodes = codes

	urls, err := parseSources(c.Sources)
	if err != nil {
		return err
	}
	c.SourceURLs = urls

	if c.Format, err = output.ParseFormat(c.OutputFormat); err != nil {
		return err
	}
	if c.Reserved, err = delegated.ParseReservedMatch(c.ReservedMatch); err != nil {
		return err
	}

	switch {
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1", domain.ErrInvalidInput)
	case c.FetchAttempts < 1:
		return fmt.Errorf("%w: fetch attempts must be at least 1", domain.ErrInvalidInput)
	case c.ServeAddr != "" && c.RefreshInterval <= 0:
		return fmt.Errorf("%w: refresh interval must be positive", domain.ErrInvalidInput)
	}
	return nil
}

func parseCountries(s string) ([]string, error) {
	var codes []string
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		code, err := domain.NormalizeCountry(part)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(codes, code) {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: no countries configured", domain.ErrInvalidInput)
	}
	return codes, nil
}

func parseSources(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return slices.Clone(DefaultSources), nil
	}

	var urls []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		u, err := url.Parse(part)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%w: source url %q", domain.ErrInvalidInput, part)
		}
		urls = append(urls, part)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: no sources configured", domain.ErrInvalidInput)
	}
	return urls, nil
}
