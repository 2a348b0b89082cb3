package popularity

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AllSubmodes is the stop type factor applied when no submode override matches.
const AllSubmodes = "*"

// Config holds the popularity boost weights.
type Config struct {
	DefaultValue       int64                         `yaml:"defaultValue" validate:"gte=0"`
	StopTypeFactors    map[string]map[string]float64 `yaml:"stopTypeFactors"`
	InterchangeFactors map[string]float64            `yaml:"interchangeFactors" validate:"dive,keys,oneof=noInterchange interchangeAllowed recommendedInterchange preferredInterchange,endkeys,gte=0"`
	GroupBoostFactor   float64                       `yaml:"groupOfStopPlacesBoostFactor" validate:"gte=0"`
}

// DefaultConfig returns the weights used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		DefaultValue:     1000,
		GroupBoostFactor: 1.0,
	}
}

// ParseConfig reads a YAML boost configuration on top of DefaultConfig and
// validates it.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse popularity config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid popularity config: %w", err)
	}
	for stopType, factors := range c.StopTypeFactors {
		if _, ok := submodeKindByStopType[stopType]; !ok {
			return fmt.Errorf("invalid popularity config: unknown stop type %q", stopType)
		}
		for submode, factor := range factors {
			if submode == "" {
				return fmt.Errorf("invalid popularity config: empty submode for stop type %q", stopType)
			}
			if factor < 0 {
				return fmt.Errorf("invalid popularity config: negative factor %v for %s/%s", factor, stopType, submode)
			}
		}
	}
	return nil
}
