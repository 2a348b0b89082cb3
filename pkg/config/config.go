package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"bahamut/pkg/blobstore"
	"bahamut/pkg/popularity"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the environment variable pointing at the YAML file.
const EnvConfigFile = "BAHAMUT_CONFIG"

const DefaultConfigFile = "config.yml"

// Storage backends.
const (
	StorageLocal = "local"
	StorageHTTP  = "http"
)

type Config struct {
	Input   Input   `yaml:"input"`
	Output  Output  `yaml:"output"`
	Target  Target  `yaml:"target"`
	Storage Storage `yaml:"storage"`
	Retry   Retry   `yaml:"retry"`

	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Workers  int           `yaml:"workers" validate:"gte=1,lte=256"`

	// AdminAddr serves /health, /ready and /metrics. Empty disables it.
	AdminAddr string `yaml:"adminAddr" validate:"omitempty,hostname_port"`

	AdminUnitsCacheSize int    `yaml:"adminUnitsCacheSize" validate:"gt=0"`
	ExcludedCountry     string `yaml:"excludedCountry" validate:"omitempty,len=2"`
	DefaultLanguage     string `yaml:"defaultLanguage" validate:"required"`
	IncludeGroups       bool   `yaml:"includeGroupsOfStopPlaces"`
	IncludeTopographic  bool   `yaml:"includeTopographicPlaces"`

	Popularity popularity.Config `yaml:"popularity" validate:"-"`
}

// Input locates the NeTEx archive.
type Input struct {
	Bucket string `yaml:"bucket" validate:"required"`
	File   string `yaml:"file" validate:"required"`
}

// Output is where the timestamped export archive is written.
type Output struct {
	Bucket string `yaml:"bucket" validate:"required"`
	Folder string `yaml:"folder"`
}

// Target receives a copy of each export under a fixed name.
type Target struct {
	Bucket   string `yaml:"bucket" validate:"required"`
	Folder   string `yaml:"folder"`
	Filename string `yaml:"filename" validate:"required"`
}

type Storage struct {
	Kind        string `yaml:"kind" validate:"oneof=local http"`
	LocalFolder string `yaml:"localFolder"`
	BaseURL     string `yaml:"baseURL" validate:"omitempty,url"`
	Token       string `yaml:"token"`
}

// Retry mirrors blobstore.RetryConfig field for field.
type Retry struct {
	MaxRetries      uint64        `yaml:"maxRetries" validate:"lte=10"`
	InitialInterval time.Duration `yaml:"initialInterval" validate:"gte=0"`
	Multiplier      float64       `yaml:"multiplier" validate:"gte=1"`
}

func Default() Config {
	return Config{
		Input: Input{
			Bucket: "kakka-dev",
			File:   "tiamat/geocoder/tiamat_export_geocoder_latest.zip",
		},
		Output: Output{Bucket: "bahamut-dev"},
		Target: Target{
			Bucket:   "haya-dev",
			Folder:   "import",
			Filename: "bahamut_latest",
		},
		Storage: Storage{
			Kind:        StorageLocal,
			LocalFolder: "files/blob",
		},
		Retry: Retry(blobstore.DefaultRetryConfig()),
		Interval:            time.Minute,
		AdminAddr:           ":8080",
		Workers:             4,
		AdminUnitsCacheSize: 30000,
		ExcludedCountry:     "RU",
		DefaultLanguage:     "no",
		IncludeGroups:       true,
		IncludeTopographic:  false,
		Popularity:          popularity.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, an optional .env file, the
// YAML file and the environment, in that order of precedence. An empty path
// means BAHAMUT_CONFIG or config.yml, and is allowed to be missing.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	required := path != ""
	if path == "" {
		path = os.Getenv(EnvConfigFile)
		required = path != ""
	}
	if path == "" {
		path = DefaultConfigFile
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		slog.Debug("Loaded config file", "path", path)
	case errors.Is(err, fs.ErrNotExist) && !required:
		slog.Debug("No config file, using defaults", "path", path)
	default:
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Storage.Kind {
	case StorageLocal:
		if c.Storage.LocalFolder == "" {
			return fmt.Errorf("invalid config: storage.localFolder is required for local storage")
		}
	case StorageHTTP:
		if c.Storage.BaseURL == "" {
			return fmt.Errorf("invalid config: storage.baseURL is required for http storage")
		}
	}
	return c.Popularity.Validate()
}

// TargetName is the blob name of the copy in the target bucket.
func (c Config) TargetName() string {
	return joinName(c.Target.Folder, c.Target.Filename+".zip")
}

func joinName(folder, name string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides fields from BAHAMUT_* variables.
func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.string("BAHAMUT_INPUT_BUCKET", &c.Input.Bucket)
	e.string("BAHAMUT_INPUT_FILE", &c.Input.File)
	e.string("BAHAMUT_OUTPUT_BUCKET", &c.Output.Bucket)
	e.string("BAHAMUT_OUTPUT_FOLDER", &c.Output.Folder)
	e.string("BAHAMUT_TARGET_BUCKET", &c.Target.Bucket)
	e.string("BAHAMUT_TARGET_FOLDER", &c.Target.Folder)
	e.string("BAHAMUT_TARGET_FILENAME", &c.Target.Filename)

	e.string("BAHAMUT_STORAGE", &c.Storage.Kind)
	e.string("BAHAMUT_STORAGE_LOCAL_FOLDER", &c.Storage.LocalFolder)
	e.string("BAHAMUT_STORAGE_URL", &c.Storage.BaseURL)
	e.string("BAHAMUT_STORAGE_TOKEN", &c.Storage.Token)

	e.uint("BAHAMUT_RETRY_MAX", &c.Retry.MaxRetries)
	e.duration("BAHAMUT_RETRY_INTERVAL", &c.Retry.InitialInterval)
	e.float("BAHAMUT_RETRY_MULTIPLIER", &c.Retry.Multiplier)

	e.duration("BAHAMUT_INTERVAL", &c.Interval)
	e.string("BAHAMUT_ADMIN_ADDR", &c.AdminAddr)
	e.int("BAHAMUT_WORKERS", &c.Workers)
	e.int("BAHAMUT_ADMIN_UNITS_CACHE_SIZE", &c.AdminUnitsCacheSize)
	e.string("BAHAMUT_EXCLUDED_COUNTRY", &c.ExcludedCountry)
	e.string("BAHAMUT_DEFAULT_LANGUAGE", &c.DefaultLanguage)
	e.bool("BAHAMUT_GOS_INCLUDE", &c.IncludeGroups)
	e.bool("BAHAMUT_TOPOGRAPHIC_INCLUDE", &c.IncludeTopographic)

	if path, ok := lookup("BAHAMUT_POPULARITY_CONFIG"); ok && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read popularity config: %w", err)
		}
		pc, err := popularity.ParseConfig(data)
		if err != nil {
			return err
		}
		c.Popularity = pc
	}
	e.float("BAHAMUT_GOS_BOOST_FACTOR", &c.Popularity.GroupBoostFactor)

	return errors.Join(e.errs...)
}

// envReader collects parse errors so every bad variable is reported at once.
type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) value(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s=%q: %w", key, v, err))
}

func (e *envReader) string(key string, dst *string) {
	if v, ok := e.value(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.value(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) uint(key string, dst *uint64) {
	if v, ok := e.value(key); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.value(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.value(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}

func (e *envReader) bool(key string, dst *bool) {
	if v, ok := e.value(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}
