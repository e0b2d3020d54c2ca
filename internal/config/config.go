package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/healthmon/internal/errors"
	"codeberg.org/mutker/healthmon/internal/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel    = "info"
	DefaultReadTimeout = 2 * time.Second
	DefaultJournalDB   = "/var/lib/healthmon/alerts.db"

	defaultEnvPrefix  = "HEALTHMON"
	configName        = "healthmon"
	configType        = "toml"
	configPathEnvName = "HEALTHMON_CONFIG"
)

type Config struct {
	Interval             int           `mapstructure:"interval"`
	CPUThreshold         float64       `mapstructure:"cpu_threshold"`
	TemperatureThreshold float64       `mapstructure:"temperature_threshold"`
	MemoryThreshold      float64       `mapstructure:"memory_threshold"`
	DiskThreshold        float64       `mapstructure:"disk_threshold"`
	LowDiskSpaceGB       float64       `mapstructure:"low_disk_space_gb"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
	LogLevel             string        `mapstructure:"log_level"`
	Journal              bool          `mapstructure:"journal"`
	JournalDB            string        `mapstructure:"journal_db"`
	MetricsFile          string        `mapstructure:"metrics_file"`
	TUI                  bool          `mapstructure:"tui"`
	Once                 bool          `mapstructure:"once"`
}

// Store owns the viper instance backing the configuration. It serves the
// monitoring Settings and raises a notification whenever the config file
// is rewritten.
type Store struct {
	v   *viper.Viper
	log logger.Logger

	mu       sync.Mutex
	cfg      *Config
	settings Settings
	saved    []func()
}

// flag name -> viper key
var flagKeys = map[string]string{
	"interval":              "interval",
	"cpu-threshold":         "cpu_threshold",
	"temperature-threshold": "temperature_threshold",
	"memory-threshold":      "memory_threshold",
	"disk-threshold":        "disk_threshold",
	"low-disk-space":        "low_disk_space_gb",
	"read-timeout":          "read_timeout",
	"log-level":             "log_level",
	"journal":               "journal",
	"journal-db":            "journal_db",
	"metrics-file":          "metrics_file",
	"tui":                   "tui",
	"once":                  "once",
}

// Load reads configuration from defaults, the TOML config file, HEALTHMON_*
// environment variables and the command line args, in increasing priority.
func Load(args []string, opts ...Option) (*Store, error) {
	errFactory := errors.New()

	o := options{envPrefix: defaultEnvPrefix, log: logger.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	path := o.configPath
	if path == "" {
		path, _ = fs.GetString("config")
	}
	if path == "" {
		path = os.Getenv(configPathEnvName)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath("/etc/healthmon")
		v.AddConfigPath("$HOME/.config/healthmon")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
		o.log.Debug().Msg("No config file found, using defaults")
	}

	s := &Store{v: v, log: o.log}
	cfg, err := s.decode()
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	s.settings = settingsFrom(cfg, o.log)

	return s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("cpu_threshold", DefaultCPUThreshold)
	v.SetDefault("temperature_threshold", DefaultTemperatureThreshold)
	v.SetDefault("memory_threshold", DefaultMemoryThreshold)
	v.SetDefault("disk_threshold", DefaultDiskThreshold)
	v.SetDefault("low_disk_space_gb", DefaultLowDiskSpaceGB)
	v.SetDefault("read_timeout", DefaultReadTimeout)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("journal", false)
	v.SetDefault("journal_db", DefaultJournalDB)
	v.SetDefault("metrics_file", "")
	v.SetDefault("tui", false)
	v.SetDefault("once", false)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("healthmon", pflag.ContinueOnError)
	fs.String("config", "", "Path to the TOML config file")
	fs.Int("interval", DefaultInterval, "Sampling interval in seconds")
	fs.Float64("cpu-threshold", DefaultCPUThreshold, "CPU usage alert threshold (%)")
	fs.Float64("temperature-threshold", DefaultTemperatureThreshold, "CPU temperature alert threshold (°C)")
	fs.Float64("memory-threshold", DefaultMemoryThreshold, "Memory usage alert threshold (%)")
	fs.Float64("disk-threshold", DefaultDiskThreshold, "Disk usage alert threshold (%)")
	fs.Float64("low-disk-space", DefaultLowDiskSpaceGB, "Low free disk space alert threshold (GiB)")
	fs.Duration("read-timeout", DefaultReadTimeout, "Upper bound for a single metric read")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning, error")
	fs.Bool("journal", false, "Record alert transitions to the sqlite journal")
	fs.String("journal-db", DefaultJournalDB, "Path to the alert journal database")
	fs.String("metrics-file", "", "Write Prometheus textfile metrics to this path")
	fs.Bool("tui", false, "Run the terminal dashboard")
	fs.Bool("once", false, "Sample, print metrics in Prometheus text format and exit")

	return fs
}

func (s *Store) decode() (*Config, error) {
	errFactory := errors.New()

	cfg := &Config{}
	if err := s.v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "warn" {
		cfg.LogLevel = string(LogLevelWarning)
	}
	if !LogLevel(cfg.LogLevel).IsValid() {
		return nil, errFactory.WithData(errors.ErrInvalidLogLevel, cfg.LogLevel)
	}

	if cfg.ReadTimeout <= 0 {
		warnFallback(s.log, "read_timeout", cfg.ReadTimeout, DefaultReadTimeout)
		cfg.ReadTimeout = DefaultReadTimeout
	}

	return cfg, nil
}

// SetLogger replaces the logger used for reload messages, typically once the
// process logger was initialized from this configuration. Call it before
// Watch.
func (s *Store) SetLogger(log logger.Logger) {
	s.log = log
}

// Config returns the configuration as of the last successful (re)load.
func (s *Store) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()

	return *s.cfg
}

// LoadSettings returns the current monitoring settings.
func (s *Store) LoadSettings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings
}

// OnSettingsSaved registers fn to run after the config file was rewritten
// and the new settings are visible through LoadSettings.
func (s *Store) OnSettingsSaved(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saved = append(s.saved, fn)
}

// Watch starts watching the config file for changes. It is a no-op when
// no config file was found.
func (s *Store) Watch() {
	if s.v.ConfigFileUsed() == "" {
		s.log.Debug().Msg("No config file to watch")
		return
	}

	s.v.OnConfigChange(s.reload)
	s.v.WatchConfig()
	s.log.Info().Str("path", s.v.ConfigFileUsed()).Msg("Watching config file")
}

func (s *Store) reload(e fsnotify.Event) {
	cfg, err := s.decode()
	if err != nil {
		s.log.Warn().Err(err).Str("path", e.Name).Msg("Ignoring invalid config change")
		return
	}

	settings := settingsFrom(cfg, s.log)

	s.mu.Lock()
	s.cfg = cfg
	s.settings = settings
	fns := make([]func(), len(s.saved))
	copy(fns, s.saved)
	s.mu.Unlock()

	s.log.Info().Str("path", e.Name).Str("op", e.Op.String()).Msg("Settings saved")

	for _, fn := range fns {
		fn()
	}
}
