package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const namespace = "TASKCAL"

type SyncEnv struct {
	// Keyword, Calendar and TaskList have no defaults here so that values
	// from the config file are not shadowed.
	Keyword        string        `envconfig:"KEYWORD"`
	Calendar       string        `envconfig:"CALENDAR"`
	TaskList       string        `envconfig:"TASK_LIST"`
	Interval       time.Duration `envconfig:"INTERVAL" default:"15m" validate:"min=1m"`
	AutoStart      bool          `envconfig:"AUTO_START" default:"false"`
	FallbackEvents bool          `envconfig:"FALLBACK_EVENTS" default:"false"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" validate:"min=1s"`
}

type BaseEnv struct {
	HTTPHost    string  `envconfig:"HTTP_HOST" default:"127.0.0.1"`
	HTTPPort    string  `envconfig:"HTTP_PORT" default:"3100" validate:"numeric"`
	APIKey      string  `envconfig:"API_KEY"`
	LogLevel    string  `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	LogFile     string  `envconfig:"LOG_FILE"`
	LogCapacity int     `envconfig:"LOG_CAPACITY" default:"200" validate:"min=1,max=10000"`
	RateLimit   float64 `envconfig:"RATE_LIMIT" default:"2" validate:"gt=0"`
	RateBurst   int     `envconfig:"RATE_BURST" default:"10" validate:"min=1"`
}

type Env struct {
	BaseEnv
	SyncEnv
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadEnv reads a .env file from the working directory when one exists,
// then the TASKCAL_* environment.
func LoadEnv() (*Env, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if err := validate.Struct(&env); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) Addr() string {
	return net.JoinHostPort(e.HTTPHost, e.HTTPPort)
}

// Config is the fully resolved configuration.
type Config struct {
	*Env
	Dir string
	// Defaults is File with env overrides and built-in defaults applied.
	Defaults File
}

// Load resolves settings with env taking precedence over the config file
// in dir, and built-in defaults last. Command-line flags are applied by
// the caller on top.
func Load(dir string) (*Config, error) {
	env, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	file, err := LoadFile(FilePath(dir))
	if err != nil {
		return nil, err
	}
	return Resolve(dir, env, file), nil
}

func Resolve(dir string, env *Env, file *File) *Config {
	defaults := File{Calendar: DefaultCalendar, Keyword: DefaultKeyword}
	defaults.Merge(*file)
	defaults.Merge(File{Calendar: env.Calendar, TaskList: env.TaskList, Keyword: env.Keyword})
	return &Config{Env: env, Dir: dir, Defaults: defaults}
}
