package commands

import (
	"os"

	"github.com/chronomesh/timechunk/src/timechunk"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRunCmd returns the command that starts a timechunk peer
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run peer",
		PreRunE: loadConfig,
		RunE:    runTimechunk,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runTimechunk(cmd *cobra.Command, args []string) error {
	engine := timechunk.NewTimechunk(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	defer engine.Shutdown()

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

// AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Database directory")
	cmd.Flags().Int("cache-size", _config.CacheSize, "Number of items in LRU caches")

	// Network instance parameters
	cmd.Flags().String("epoch", _config.Epoch, "Network instance origin, RFC3339")
	cmd.Flags().Duration("chunk-interval", _config.ChunkInterval, "Length of each time window")
	cmd.Flags().Int("direct-link-limit", _config.DirectLinkLimit, "Direct links per author per chunk")
	cmd.Flags().Int("spam-limit", _config.SpamLimit, "Total links per author per chunk")
	cmd.Flags().Duration("future-tolerance", _config.FutureTolerance, "Accepted clock skew")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	_config.SetLogger(newLogger())

	logFields := logrus.Fields{
		"DataDir":         _config.DataDir,
		"ServiceAddr":     _config.ServiceAddr,
		"NoService":       _config.NoService,
		"Store":           _config.Store,
		"LogLevel":        _config.LogLevel,
		"Moniker":         _config.Moniker,
		"CacheSize":       _config.CacheSize,
		"Epoch":           _config.Epoch,
		"ChunkInterval":   _config.ChunkInterval,
		"DirectLinkLimit": _config.DirectLinkLimit,
		"SpamLimit":       _config.SpamLimit,
		"FutureTolerance": _config.FutureTolerance,
	}

	if _config.Store {
		logFields["DatabaseDir"] = _config.DatabaseDir
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/timechunk.toml (.json, .yaml also work)
	viper.SetConfigName("timechunk")     // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

// newLogger mirrors console output of the info and debug levels to files in
// the working directory.
func newLogger() *logrus.Logger {
	logger := logrus.New()

	pathMap := lfshook.PathMap{}

	_, err := os.OpenFile("timechunk_info.log", os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Info("Failed to open timechunk_info.log file, using default stderr")
	} else {
		pathMap[logrus.InfoLevel] = "timechunk_info.log"
	}

	_, err = os.OpenFile("timechunk_debug.log", os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Info("Failed to open timechunk_debug.log file, using default stderr")
	} else {
		pathMap[logrus.DebugLevel] = "timechunk_debug.log"
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))

	logger.Level = logLevel(_config.LogLevel)

	return logger
}

func logLevel(l string) logrus.Level {
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
