package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the settings file looked up in each candidate directory.
const ConfigFileName = "dns.config.yaml"

// AppConfig holds the server settings after defaults, the settings file and
// DNS_* environment variables have been layered.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log-level" validate:"required,oneof=debug info warn error"`

	// ListeningPort is the UDP port client queries arrive on.
	ListeningPort int `koanf:"listening-port" validate:"gte=1,lte=65535"`

	// RemoteLookupPort is the local port upstream queries are sent from. 0 picks an ephemeral port.
	RemoteLookupPort int `koanf:"remote-lookup-port" validate:"gte=0,lte=65535"`

	// ThreadCount is the number of workers handling queries.
	ThreadCount int `koanf:"thread-count" validate:"gte=1,lte=1024"`

	UseUDP bool `koanf:"use-udp"`
	// UseTCP is accepted for compatibility; DNS over TCP is not served.
	UseTCP bool `koanf:"use-tcp"`

	// DatabaseFile is a SQLite file of local records. Missing files are tolerated.
	DatabaseFile string `koanf:"database-file"`

	// ZoneDir is an optional directory of zone files.
	ZoneDir string `koanf:"zone-dir"`

	// HostsFile is an optional /etc/hosts-style file of A and AAAA records.
	HostsFile string `koanf:"hosts-file"`

	// UpstreamServers are resolvers queried on a local miss, as host or host:port.
	UpstreamServers []string `koanf:"upstream-servers" validate:"required,min=1,dive,upstream"`

	UpstreamTimeout time.Duration `koanf:"upstream-timeout" validate:"gt=0"`
	UpstreamRetries int           `koanf:"upstream-retries" validate:"gte=0,lte=10"`

	// StatusAddr enables the HTTP status API when set, e.g. "127.0.0.1:8053".
	StatusAddr string `koanf:"status-addr" validate:"omitempty,hostname_port"`

	// DefaultTTL applies to local records that do not set one.
	DefaultTTL uint32 `koanf:"default-ttl" validate:"gte=1"`
}

// DEFAULT_APP_CONFIG defines the settings used when neither the settings file
// nor the environment override them.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:              "prod",
	LogLevel:         "info",
	ListeningPort:    53,
	RemoteLookupPort: 42069,
	ThreadCount:      1,
	UseUDP:           true,
	UseTCP:           false,
	DatabaseFile:     "~/.config/simpledns/simpledns.sqlite.db",
	ZoneDir:          "",
	HostsFile:        "",
	UpstreamServers:  []string{"8.8.8.8"},
	UpstreamTimeout:  2 * time.Second,
	UpstreamRetries:  1,
	StatusAddr:       "",
	DefaultTTL:       300,
}

// ServerConfig is what the server is built from.
type ServerConfig struct {
	ListenAddr      string
	OutboundPort    int
	Upstreams       []string
	UpstreamTimeout time.Duration
	UpstreamRetries int
	ThreadCount     int
	ZoneDir         string
	HostsFile       string
	DatabaseFile    string
	DefaultTTL      uint32
	StatusAddr      string
}

// ServerConfig projects the loaded settings onto the server construction value.
func (c *AppConfig) ServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:      net.JoinHostPort("", strconv.Itoa(c.ListeningPort)),
		OutboundPort:    c.RemoteLookupPort,
		Upstreams:       append([]string(nil), c.UpstreamServers...),
		UpstreamTimeout: c.UpstreamTimeout,
		UpstreamRetries: c.UpstreamRetries,
		ThreadCount:     c.ThreadCount,
		ZoneDir:         c.ZoneDir,
		HostsFile:       c.HostsFile,
		DatabaseFile:    c.DatabaseFile,
		DefaultTTL:      c.DefaultTTL,
		StatusAddr:      c.StatusAddr,
	}
}

// Candidates lists the settings file locations in lookup order.
func Candidates(home string) []string {
	paths := []string{filepath.Join(".", ConfigFileName)}
	if home != "" {
		paths = append(paths, filepath.Join(home, ".config", "simpledns", ConfigFileName))
	}
	return append(paths, filepath.Join("/etc", "simpledns", ConfigFileName))
}

// FirstExisting returns the first candidate for which exists reports true.
func FirstExisting(candidates []string, exists func(string) bool) (string, bool) {
	for _, c := range candidates {
		if exists(c) {
			return c, true
		}
	}
	return "", false
}

// ExpandPath replaces a leading "~" with home and expands $VAR references.
func ExpandPath(path, home string) string {
	if path == "" {
		return ""
	}
	if home != "" && (path == "~" || strings.HasPrefix(path, "~/")) {
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return os.ExpandEnv(path)
}

// validUpstream accepts an IP address or hostname, optionally with a port.
func validUpstream(fl validator.FieldLevel) bool {
	addr := strings.TrimSpace(fl.Field().String())
	if addr == "" {
		return false
	}
	host := addr
	if h, port, err := net.SplitHostPort(addr); err == nil {
		portNum, err := strconv.ParseUint(port, 10, 16)
		if err != nil || portNum == 0 {
			return false
		}
		host = h
	} else if strings.Count(addr, ":") == 1 {
		// host:port that SplitHostPort refused
		return false
	}
	host = strings.Trim(host, "[]")
	if net.ParseIP(host) != nil {
		return true
	}
	return hostnames.Var(host, "hostname_rfc1123") == nil
}

var hostnames = validator.New()

// fileExists reports whether path names a regular file. Tests replace it.
var fileExists = func(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// userHomeDir is mockable for tests.
var userHomeDir = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// envLoader loads environment variables with the prefix "DNS_". DNS_THREAD_COUNT
// becomes "thread-count"; comma or space separated values become lists.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "DNS_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, "DNS_")), "_", "-")
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG into k.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader merges the YAML settings file at path into k.
var fileLoader = func(k *koanf.Koanf, path string) error {
	return k.Load(file.Provider(path), yaml.Parser())
}

// registerValidation registers the "upstream" tag with the provided validator.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("upstream", validUpstream)
}

// Load builds the configuration. An explicit path must exist; otherwise the
// first existing file from Candidates is used, and none at all means defaults
// plus environment. It returns the settings file used, or "".
func Load(path string) (*AppConfig, string, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, "", fmt.Errorf("error loading default config: %w", err)
	}

	home := userHomeDir()
	if path != "" {
		path = ExpandPath(path, home)
		if !fileExists(path) {
			return nil, "", fmt.Errorf("config file %s: %w", path, os.ErrNotExist)
		}
	} else {
		path, _ = FirstExisting(Candidates(home), fileExists)
	}
	if path != "" {
		if err := fileLoader(k, path); err != nil {
			return nil, "", fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	err = envLoader(k)
	if err != nil {
		return nil, "", fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, "", fmt.Errorf("error unmarshalling config: %w", err)
	}

	cfg.DatabaseFile = ExpandPath(cfg.DatabaseFile, home)
	cfg.ZoneDir = ExpandPath(cfg.ZoneDir, home)
	cfg.HostsFile = ExpandPath(cfg.HostsFile, home)

	validate := validator.New(validator.WithRequiredStructEnabled())

	err = registerValidation(validate)
	if err != nil {
		return nil, "", fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, "", fmt.Errorf("validation failed: %w", err)
	}

	if !cfg.UseUDP && !cfg.UseTCP {
		return nil, "", errors.New("validation failed: at least one of use-udp or use-tcp must be enabled")
	}

	return &cfg, path, nil
}
