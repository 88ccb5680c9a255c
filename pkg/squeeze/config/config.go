package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/jamesainslie/squeeze/pkg/squeeze/logging"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level        string            `mapstructure:"level"`
	Path         string            `mapstructure:"path"`
	ConsoleLevel string            `mapstructure:"console_level"`
	Rotation     RotationConfig    `mapstructure:"rotation"`
	Components   map[string]string `mapstructure:"components"`
}

// ClassConfig holds the settings shared by every media class.
type ClassConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	MinSize    string   `mapstructure:"min_size"`
	Extensions []string `mapstructure:"extensions"`
	Command    string   `mapstructure:"command"`
	ExtraArgs  []string `mapstructure:"extra_args"`
}

// ImageConfig configures the batch image optimizer.
type ImageConfig struct {
	ClassConfig   `mapstructure:",squash"`
	Lossy         bool `mapstructure:"lossy"`
	Quality       int  `mapstructure:"quality"`
	StripMetadata bool `mapstructure:"strip_metadata"`
}

// VideoConfig configures the video transcoder.
type VideoConfig struct {
	ClassConfig `mapstructure:",squash"`
	Codec       string `mapstructure:"codec"`
	CRF         int    `mapstructure:"crf"`
	Preset      string `mapstructure:"preset"`
	MaxHeight   int    `mapstructure:"max_height"`
}

// DocumentConfig configures the PDF compressor.
type DocumentConfig struct {
	ClassConfig   `mapstructure:",squash"`
	Resolution    int    `mapstructure:"resolution"`
	Compatibility string `mapstructure:"compatibility"`
}

// Config represents the application configuration.
type Config struct {
	DefaultPath     string        `mapstructure:"default_path"`
	BatchSize       int           `mapstructure:"batch_size"`
	ParallelClasses bool          `mapstructure:"parallel_classes"`
	CheckDeps       bool          `mapstructure:"check_deps"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Exclude         []string      `mapstructure:"exclude"`
	Workers         struct {
		Hash int `mapstructure:"hash"`
		Diff int `mapstructure:"diff"`
	} `mapstructure:"workers"`
	Manifest struct {
		Enabled bool   `mapstructure:"enabled"`
		Dir     string `mapstructure:"dir"`
		Fsync   bool   `mapstructure:"fsync"`
	} `mapstructure:"manifest"`
	Cache struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"cache"`
	Image    ImageConfig    `mapstructure:"image"`
	Video    VideoConfig    `mapstructure:"video"`
	Document DocumentConfig `mapstructure:"document"`
	Watch    struct {
		Debounce time.Duration `mapstructure:"debounce"`
	} `mapstructure:"watch"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Configure prepares v with squeeze's config search paths, environment
// binding and defaults, then reads the config file. A non-empty file is used
// verbatim; otherwise the XDG locations are searched and a missing file is
// not an error.
//
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/squeeze/config.yaml
//   - $HOME/.config/squeeze/config.yaml
//
// Environment variables are prefixed with SQUEEZE_ (e.g., SQUEEZE_BATCH_SIZE).
func Configure(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "squeeze"))
		}

		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "squeeze"))
	}

	v.SetEnvPrefix("SQUEEZE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return nil
}

// SetDefaults registers every configuration key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("default_path", DefaultPath)
	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("parallel_classes", false)
	v.SetDefault("check_deps", true)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("workers.hash", 0)
	v.SetDefault("workers.diff", DefaultDiffWorkers)

	v.SetDefault("manifest.enabled", true)
	v.SetDefault("manifest.dir", DefaultManifestDir)
	v.SetDefault("manifest.fsync", true)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "")

	setClassDefaults(v, "image", types.Image, "image_optim")
	v.SetDefault("image.lossy", false)
	v.SetDefault("image.quality", DefaultImageQuality)
	v.SetDefault("image.strip_metadata", true)

	setClassDefaults(v, "video", types.Video, "ffmpeg")
	v.SetDefault("video.codec", DefaultVideoCodec)
	v.SetDefault("video.crf", DefaultVideoCRF)
	v.SetDefault("video.preset", DefaultVideoPreset)
	v.SetDefault("video.max_height", DefaultVideoMaxHeight)

	setClassDefaults(v, "document", types.Document, "gs")
	v.SetDefault("document.resolution", DefaultDocumentResolution)
	v.SetDefault("document.compatibility", DefaultDocumentCompatibility)

	v.SetDefault("watch.debounce", DefaultWatchDebounce)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.console_level", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.compress", true)
	v.SetDefault("logging.components", map[string]string{
		"scanner":  "info",
		"dispatch": "info",
		"watcher":  "warn",
	})
}

func setClassDefaults(v *viper.Viper, key string, class types.MediaClass, command string) {
	spec := types.DefaultClassSpec(class)
	v.SetDefault(key+".enabled", true)
	v.SetDefault(key+".min_size", types.FormatSize(spec.MinSize))
	v.SetDefault(key+".extensions", spec.Extensions)
	v.SetDefault(key+".command", command)
	v.SetDefault(key+".extra_args", []string{})
}

// Decode unmarshals v into a Config and validates it.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Exclude = MergeExclusions(cfg.Exclude)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MergeExclusions returns DefaultExclusions followed by the patterns in
// extra that are not already present. Configured globs never replace the
// defaults.
func MergeExclusions(extra []string) []string {
	return lo.Uniq(append(slices.Clone(DefaultExclusions), extra...))
}

// Load loads configuration from file and environment variables into a
// fresh viper instance.
func Load() (*Config, error) {
	v := viper.New()
	if err := Configure(v, ""); err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate checks values that cannot be expressed by the type system.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", c.Timeout)
	}
	if c.Workers.Hash < 0 || c.Workers.Diff < 0 {
		return fmt.Errorf("worker counts cannot be negative")
	}
	if c.Image.Quality < 0 || c.Image.Quality > 100 {
		return fmt.Errorf("image.quality must be between 0 and 100, got %d", c.Image.Quality)
	}
	if c.Video.CRF < 0 || c.Video.CRF > 51 {
		return fmt.Errorf("video.crf must be between 0 and 51, got %d", c.Video.CRF)
	}
	if c.Video.MaxHeight < 0 {
		return fmt.Errorf("video.max_height cannot be negative, got %d", c.Video.MaxHeight)
	}
	if c.Document.Resolution < 1 {
		return fmt.Errorf("document.resolution must be positive, got %d", c.Document.Resolution)
	}
	if c.Manifest.Dir == "" || c.Manifest.Dir == "." || c.Manifest.Dir == ".." || strings.ContainsAny(c.Manifest.Dir, `/\`) {
		return fmt.Errorf("manifest.dir must be a single directory name, got %q", c.Manifest.Dir)
	}

	for _, class := range types.AllClasses() {
		if _, err := c.Spec(class); err != nil {
			return err
		}
	}

	if _, err := c.Logging.Logging(); err != nil {
		return err
	}

	return nil
}

// Class returns the shared settings for a media class.
func (c *Config) Class(class types.MediaClass) ClassConfig {
	switch class {
	case types.Image:
		return c.Image.ClassConfig
	case types.Video:
		return c.Video.ClassConfig
	default:
		return c.Document.ClassConfig
	}
}

// Spec builds the file selection rules for a media class.
func (c *Config) Spec(class types.MediaClass) (types.ClassSpec, error) {
	cc := c.Class(class)
	spec := types.DefaultClassSpec(class)

	if cc.MinSize != "" {
		minSize, err := types.ParseSize(cc.MinSize)
		if err != nil {
			return types.ClassSpec{}, fmt.Errorf("invalid %s.min_size %q: %w", class, cc.MinSize, err)
		}
		spec.MinSize = minSize
	}

	if len(cc.Extensions) > 0 {
		spec.Extensions = types.NormalizeExtensions(cc.Extensions)
	}

	return spec, nil
}

// EnabledClasses returns the enabled media classes in dispatch order.
func (c *Config) EnabledClasses() []types.MediaClass {
	var classes []types.MediaClass
	for _, class := range types.AllClasses() {
		if c.Class(class).Enabled {
			classes = append(classes, class)
		}
	}
	return classes
}

// HashCachePath returns the configured hash cache location.
func (c *Config) HashCachePath() (string, error) {
	if c.Cache.Path == "" {
		return DefaultHashCachePath(), nil
	}
	return ExpandPath(c.Cache.Path)
}

// Logging converts the logging section into a logging.Config.
func (l LoggingConfig) Logging() (logging.Config, error) {
	if _, err := logging.ParseLevel(l.Level); err != nil {
		return logging.Config{}, fmt.Errorf("invalid logging.level: %w", err)
	}
	if l.ConsoleLevel != "" {
		if _, err := logging.ParseLevel(l.ConsoleLevel); err != nil {
			return logging.Config{}, fmt.Errorf("invalid logging.console_level: %w", err)
		}
	}

	rotation := logging.DefaultRotationConfig()
	if l.Rotation.MaxSize != "" {
		size, err := types.ParseSize(l.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("invalid logging.rotation.max_size %q: %w", l.Rotation.MaxSize, err)
		}
		rotation.MaxSize = size
	}
	rotation.MaxAge = l.Rotation.MaxAge
	rotation.MaxBackups = l.Rotation.MaxBackups
	rotation.Compress = l.Rotation.Compress

	path, err := ExpandPath(l.Path)
	if err != nil {
		return logging.Config{}, err
	}

	return logging.Config{
		Level:        l.Level,
		Path:         path,
		Rotation:     rotation,
		Components:   l.Components,
		ConsoleLevel: l.ConsoleLevel,
	}, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "squeeze"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "squeeze"), nil
}

// ConfigFilePath returns the default config file path.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return "", err
	}
	return configPath, WriteDefaultTo(configPath)
}

// WriteDefaultTo writes the default config template to path unless a file
// already exists there.
func WriteDefaultTo(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultTemplate()), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

func defaultTemplate() string {
	image := types.DefaultClassSpec(types.Image)
	video := types.DefaultClassSpec(types.Video)
	doc := types.DefaultClassSpec(types.Document)

	return fmt.Sprintf(`# squeeze media optimizer configuration

# Root to optimize when none is specified
default_path: %s

# Images handed to a single image optimizer invocation
batch_size: %d

# Run image, video and document passes concurrently
parallel_classes: false

# Verify external tools are installed before a run
check_deps: true

# Upper bound for one external optimizer invocation (0 disables)
timeout: %s

# Path component globs to skip, added to the built-in NAS and sync-client
# exclusions (hidden entries are always skipped)
exclude:
%s
workers:
  # Concurrent hashing workers (0 = one per CPU)
  hash: 0
  # Change detector fan-out
  diff: %d

# Append-only identity logs kept under <root>/<dir>
manifest:
  enabled: true
  dir: %s
  # fsync after every appended record
  fsync: true

# Content hash cache keyed by path, size and mtime
cache:
  enabled: true
  # Empty means $XDG_CACHE_HOME/squeeze/hashes
  path: ""

image:
  enabled: true
  min_size: %s
  extensions: [%s]
  command: image_optim
  # Allow lossy recompression (degrades on repeated runs without a manifest)
  lossy: false
  quality: %d
  strip_metadata: true
  extra_args: []

video:
  enabled: true
  min_size: %s
  extensions: [%s]
  command: ffmpeg
  codec: %s
  crf: %d
  preset: %s
  # Downscale taller videos to this height (0 keeps the source size)
  max_height: %d
  extra_args: []

document:
  enabled: true
  min_size: %s
  extensions: [%s]
  command: gs
  # Image downsampling target in DPI
  resolution: %d
  compatibility: "%s"
  extra_args: []

watch:
  # Quiet period before re-running after filesystem changes
  debounce: %s

logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means $XDG_STATE_HOME/squeeze/squeeze.log)
  path: ""
  # Console log level (empty disables console logging)
  console_level: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    compress: true
  components:
    scanner: info
    dispatch: info
    watcher: warn
`,
		DefaultPath, DefaultBatchSize, DefaultTimeout,
		yamlList(DefaultExclusions), DefaultDiffWorkers, DefaultManifestDir,
		types.FormatSize(image.MinSize), strings.Join(image.Extensions, ", "), DefaultImageQuality,
		types.FormatSize(video.MinSize), strings.Join(video.Extensions, ", "),
		DefaultVideoCodec, DefaultVideoCRF, DefaultVideoPreset, DefaultVideoMaxHeight,
		types.FormatSize(doc.MinSize), strings.Join(doc.Extensions, ", "),
		DefaultDocumentResolution, DefaultDocumentCompatibility,
		DefaultWatchDebounce,
	)
}

func yamlList(items []string) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "  - %q\n", item)
	}
	return b.String()
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// StateDir returns $XDG_STATE_HOME/squeeze/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "squeeze")
}

// CacheDir returns $XDG_CACHE_HOME/squeeze/.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "squeeze")
}

// DefaultHashCachePath returns the default hash cache directory.
func DefaultHashCachePath() string {
	return filepath.Join(CacheDir(), "hashes")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "squeeze.log")
}
