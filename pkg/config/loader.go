package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Validator is implemented by config structs that check their own invariants
// after parsing.
type Validator interface {
	Validate() error
}

type configCache struct {
	mu     sync.Mutex
	values map[reflect.Type]any
}

var (
	cache = &configCache{values: make(map[reflect.Type]any)}

	dotenvOnce sync.Once
)

// LoadDotenv reads the given files (".env" when none are named) into the process
// environment. Variables already set win. Missing files are ignored.
func LoadDotenv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load parses environment variables into v based on its `env` struct tags.
// Each config type is parsed once per process; later calls get the cached copy.
// If *T implements Validator, Validate runs before the value is cached.
//
//	type PolicyConfig struct {
//		CapHigh int `env:"NOTIFY_CAP_HIGH" envDefault:"10"`
//	}
//
//	var cfg PolicyConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() { LoadDotenv() })

	key := reflect.TypeFor[T]()

	cache.mu.Lock()
	defer cache.mu.Unlock()

	if cached, ok := cache.values[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	if val, ok := any(&parsed).(Validator); ok {
		if err := val.Validate(); err != nil {
			return errors.Join(ErrInvalidConfig, err)
		}
	}

	cache.values[key] = parsed
	*v = parsed
	return nil
}

// MustLoad works like Load but panics if loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration %s: %v", reflect.TypeFor[T](), err))
	}
}

// Reset drops every cached config. Intended for tests.
func Reset() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.values = make(map[reflect.Type]any)
}
