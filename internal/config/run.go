package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"zerofield/domain/core"
	"zerofield/domain/cosmo"
	"zerofield/internal/errors"
)

var validate = validator.New()

// Mode names a run-size preset.
type Mode string

const (
	ModeQuick       Mode = "quick"
	ModeFull        Mode = "full"
	ModePublication Mode = "publication"
)

// RefutabilityThreshold is the Δχ² margin the scalar-field model may exceed
// ΛCDM by and still pass.
const RefutabilityThreshold = 5.0

// ModePreset is the sampler budget of a mode.
type ModePreset struct {
	Walkers int
	BurnIn  int
	Steps   int
}

var presets = map[Mode]ModePreset{
	ModeQuick:       {Walkers: 16, BurnIn: 50, Steps: 100},
	ModeFull:        {Walkers: 32, BurnIn: 500, Steps: 5000},
	ModePublication: {Walkers: 64, BurnIn: 1000, Steps: 10000},
}

// Preset returns the budget of a mode.
func Preset(m Mode) (ModePreset, bool) {
	p, ok := presets[m]
	return p, ok
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := presets[m]; !ok {
		return "", errors.ConfigInvalid(fmt.Sprintf("unknown mode %q (want quick, full or publication)", s))
	}
	return m, nil
}

// SolverConfig tunes the scalar-field integration.
type SolverConfig struct {
	Steps    int     `yaml:"steps" json:"steps" validate:"gte=3"`
	Closure  string  `yaml:"closure" json:"closure" validate:"oneof=lambda reference"`
	RTol     float64 `yaml:"rtol" json:"rtol" validate:"gt=0"`
	ATol     float64 `yaml:"atol" json:"atol" validate:"gt=0"`
	MaxSteps int     `yaml:"max_steps" json:"max_steps" validate:"gte=1"`
	PhiSeed  float64 `yaml:"phi_seed" json:"phi_seed"`
}

// ProbeConfig selects the probe prediction models.
type ProbeConfig struct {
	// Reference swaps in the simplified BAO and SNe mocks of the original analysis.
	Reference     bool               `yaml:"reference" json:"reference"`
	SoundHorizon  float64            `yaml:"sound_horizon" json:"sound_horizon" validate:"gt=0"`
	CMBRedshift   float64            `yaml:"cmb_redshift" json:"cmb_redshift" validate:"gt=0"`
	Weights       map[string]float64 `yaml:"weights" json:"weights" validate:"dive,gte=0"`
	AllowFallback bool               `yaml:"allow_fallback" json:"allow_fallback"`
}

// RunConfig is the immutable configuration of one inference run.
type RunConfig struct {
	Mode            Mode                  `yaml:"mode" json:"mode" validate:"required"`
	Walkers         int                   `yaml:"walkers" json:"walkers" validate:"gte=2"`
	BurnIn          int                   `yaml:"burn_in" json:"burn_in" validate:"gte=0"`
	Steps           int                   `yaml:"steps" json:"steps" validate:"gte=1"`
	Seed            uint64                `yaml:"seed" json:"seed"`
	Workers         int                   `yaml:"workers" json:"workers" validate:"gte=0"`
	Timeout         time.Duration         `yaml:"timeout" json:"timeout" validate:"gte=0"`
	StretchScale    float64               `yaml:"stretch_scale" json:"stretch_scale" validate:"gt=1"`
	MaxInitAttempts int                   `yaml:"max_init_attempts" json:"max_init_attempts" validate:"gte=1"`
	ProgressEvery   int                   `yaml:"progress_every" json:"progress_every" validate:"gte=0"`
	Fiducial        cosmo.ParameterVector `yaml:"fiducial" json:"fiducial"`
	Scatter         cosmo.ParameterVector `yaml:"scatter" json:"scatter"`
	Priors          cosmo.PriorBounds     `yaml:"priors" json:"priors"`
	Solver          SolverConfig          `yaml:"solver" json:"solver"`
	Probes          ProbeConfig           `yaml:"probes" json:"probes"`
}

// DefaultRunConfig returns the quick-mode configuration.
func DefaultRunConfig() RunConfig {
	p := presets[ModeQuick]
	return RunConfig{
		Mode:            ModeQuick,
		Walkers:         p.Walkers,
		BurnIn:          p.BurnIn,
		Steps:           p.Steps,
		Seed:            42,
		StretchScale:    2.0,
		MaxInitAttempts: 100,
		ProgressEvery:   50,
		Fiducial:        cosmo.Fiducial(),
		Scatter:         cosmo.NewParameterVector(0.5, 0.01, 1e-43),
		Priors:          cosmo.DefaultPriorBounds(),
		Solver: SolverConfig{
			Steps:    100,
			Closure:  "lambda",
			RTol:     1e-8,
			ATol:     1e-10,
			MaxSteps: 10000,
			PhiSeed:  1e-10,
		},
		Probes: ProbeConfig{
			SoundHorizon:  147.09,
			CMBRedshift:   1089.92,
			AllowFallback: true,
		},
	}
}

// WithMode applies a mode preset to the sampler budget.
func (c RunConfig) WithMode(m Mode) RunConfig {
	if p, ok := presets[m]; ok {
		c.Mode = m
		c.Walkers = p.Walkers
		c.BurnIn = p.BurnIn
		c.Steps = p.Steps
	}
	return c
}

// LoadRunConfig loads configuration with priority: env > file > defaults.
// An empty path or a missing file leaves the defaults in place.
func LoadRunConfig(path string) (RunConfig, error) {
	config := DefaultRunConfig()

	if path != "" {
		if err := loadRunConfigFile(path, &config); err != nil {
			return config, errors.Wrapf(err, "load run config %s", path)
		}
	}

	loadRunConfigFromEnv(&config)

	if err := config.Validate(); err != nil {
		return config, errors.Wrap(err, "invalid run config")
	}
	return config, nil
}

func loadRunConfigFile(path string, config *RunConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	// A mode in the file resets the budget before explicit sizes are applied.
	var head struct {
		Mode Mode `yaml:"mode" json:"mode"`
	}
	if yaml.Unmarshal(data, &head) == nil && head.Mode != "" {
		*config = config.WithMode(head.Mode)
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if jsonErr := json.Unmarshal(data, config); jsonErr != nil {
			return errors.ConfigInvalid(fmt.Sprintf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %v", err, jsonErr))
		}
	}
	return nil
}

func loadRunConfigFromEnv(config *RunConfig) {
	if v := os.Getenv("ZFP_MODE"); v != "" {
		if m, err := ParseMode(v); err == nil {
			*config = config.WithMode(m)
		}
	}
	config.Walkers = getEnvIntOrDefault("ZFP_WALKERS", config.Walkers)
	config.BurnIn = getEnvIntOrDefault("ZFP_BURN_IN", config.BurnIn)
	config.Steps = getEnvIntOrDefault("ZFP_STEPS", config.Steps)
	config.Seed = getEnvUintOrDefault("ZFP_SEED", config.Seed)
	config.Workers = getEnvIntOrDefault("ZFP_WORKERS", config.Workers)
	config.Timeout = getEnvDurationOrDefault("ZFP_TIMEOUT", config.Timeout)
	config.Solver.Steps = getEnvIntOrDefault("ZFP_SOLVER_STEPS", config.Solver.Steps)
	config.Solver.Closure = getEnvOrDefault("ZFP_CLOSURE", config.Solver.Closure)
	config.Probes.Reference = getEnvBoolOrDefault("ZFP_REFERENCE_PROBES", config.Probes.Reference)
	config.Probes.SoundHorizon = getEnvFloatOrDefault("ZFP_SOUND_HORIZON", config.Probes.SoundHorizon)
}

// Validate checks struct tags and the cross-field constraints of the ensemble.
func (c RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if _, ok := presets[c.Mode]; !ok {
		return errors.ConfigInvalid(fmt.Sprintf("unknown mode %q", c.Mode))
	}
	if c.Walkers < 2*cosmo.NDim {
		return errors.ConfigInvalid(fmt.Sprintf("walkers must be >= %d, got %d", 2*cosmo.NDim, c.Walkers))
	}
	if err := c.Priors.Validate(); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if !c.Fiducial.IsFinite() || !c.Priors.Contains(c.Fiducial) {
		return errors.ConfigInvalid(fmt.Sprintf("fiducial %s lies outside the prior box", c.Fiducial))
	}
	for i, s := range c.Scatter {
		if !(s > 0) {
			return errors.ConfigInvalid(fmt.Sprintf("scatter for %s must be > 0, got %g", cosmo.ParamNames[i], s))
		}
	}
	for name, w := range c.Probes.Weights {
		if w < 0 {
			return errors.ConfigInvalid(fmt.Sprintf("weight for probe %s must be >= 0", name))
		}
	}
	return nil
}

// Hash fingerprints everything that influences the sampled chain. Workers and
// timeout are excluded since results do not depend on them.
func (c RunConfig) Hash() core.Hash {
	c.Workers = 0
	c.Timeout = 0
	c.ProgressEvery = 0
	data, err := json.Marshal(c)
	if err != nil {
		return core.HashString(fmt.Sprintf("%+v", c))
	}
	return core.HashString(string(data))
}
