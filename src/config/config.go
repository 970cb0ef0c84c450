package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/chronomesh/timechunk/src/chunk"
	"github.com/chronomesh/timechunk/src/common"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the author's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"
)

// Default configuration values.
const (
	DefaultLogLevel    = "debug"
	DefaultServiceAddr = "127.0.0.1:8000"
	DefaultCacheSize   = 10000
	DefaultStore       = false
)

// Config contains all the configuration properties of a timechunk peer.
type Config struct {
	// DataDir is the top-level directory containing timechunk configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service. If not
	// specified, and "no-service" is not set, the API handlers are registered
	// with the DefaultServerMux of the http package. It is possible that
	// another server in the same process is simultaneously using the
	// DefaultServerMux. In which case, the handlers will be accessible from
	// both servers. This is usefull when timechunk is used in-memory and
	// expected to use the same endpoint (address:port) as the application's
	// API.
	ServiceAddr string `mapstructure:"service-listen"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// CacheSize is the max number of items in in-memory caches.
	CacheSize int `mapstructure:"cache-size"`

	// Moniker defines the friendly name of this peer
	Moniker string `mapstructure:"moniker"`

	// Epoch is the network instance origin, RFC3339. Window 0 starts here.
	// Every peer of an instance must use the same value.
	Epoch string `mapstructure:"epoch"`

	// ChunkInterval is the length of each time window.
	ChunkInterval time.Duration `mapstructure:"chunk-interval"`

	// DirectLinkLimit is the number of direct links a single author may attach
	// to one chunk before further links must be chained.
	DirectLinkLimit int `mapstructure:"direct-link-limit"`

	// SpamLimit is the total number of links a single author may create on one
	// chunk.
	SpamLimit int `mapstructure:"spam-limit"`

	// FutureTolerance is the clock skew allowed before a window that starts in
	// the future is rejected.
	FutureTolerance time.Duration `mapstructure:"future-tolerance"`

	// Key is the private key of the author.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:         DefaultDataDir(),
		LogLevel:        DefaultLogLevel,
		ServiceAddr:     DefaultServiceAddr,
		CacheSize:       DefaultCacheSize,
		Store:           DefaultStore,
		DatabaseDir:     DefaultDatabaseDir(),
		Epoch:           time.Unix(0, 0).UTC().Format(time.RFC3339),
		ChunkInterval:   chunk.DefaultMaxChunkInterval,
		DirectLinkLimit: chunk.DefaultDirectChunkLinkLimit,
		SpamLimit:       chunk.DefaultEnforceSpamLimit,
		FutureTolerance: chunk.DefaultFutureTolerance,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// ChunkParams converts the configured network constants into chunk.Params. An
// unparsable epoch fails rather than silently starting a different network
// instance.
func (c *Config) ChunkParams() (*chunk.Params, error) {
	epoch, err := time.Parse(time.RFC3339, c.Epoch)
	if err != nil {
		return nil, err
	}
	return &chunk.Params{
		Epoch:                epoch.UTC(),
		MaxChunkInterval:     c.ChunkInterval,
		DirectChunkLinkLimit: c.DirectLinkLimit,
		EnforceSpamLimit:     c.SpamLimit,
		FutureTolerance:      c.FutureTolerance,
	}, nil
}

// SetDataDir sets the top-level timechunk directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely
// set it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// Logger returns a formatted logrus Entry, with prefix set to "timechunk".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "timechunk")
}

// SetLogger sets the config's logger.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level timechunk
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Timechunk")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Timechunk")
		} else {
			return filepath.Join(home, ".timechunk")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
