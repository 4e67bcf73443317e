package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/HannahMarsh/PrettyLogger"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/data"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/errs"
	"github.com/ilyakaznacheev/cleanenv"
)

type Simulation struct {
	Users              int     `yaml:"users" env:"SIM_USERS" env-default:"1000"`
	Attackers          int     `yaml:"attackers" env:"SIM_ATTACKERS" env-default:"50"`
	Capacity           int     `yaml:"capacity" env:"SIM_CAPACITY" env-default:"50"`
	RiskConstant       float64 `yaml:"riskConstant" env:"SIM_RISK_CONSTANT" env-default:"1.0"`
	RiskPerBucket      float64 `yaml:"riskPerBucket" env:"SIM_RISK_PER_BUCKET" env-default:"0.5"`
	AttackProbability  float64 `yaml:"attackProbability" env:"SIM_ATTACK_PROBABILITY" env-default:"1.0"`
	RevealProbability  float64 `yaml:"revealProbability" env:"SIM_REVEAL_PROBABILITY" env-default:"0"`
	MaxTicks           int     `yaml:"maxTicks" env:"SIM_MAX_TICKS" env-default:"100"`
	Seed               int64   `yaml:"seed" env:"SIM_SEED" env-default:"1"`
	EvictIsolated      bool    `yaml:"evictIsolated" env:"SIM_EVICT_ISOLATED" env-default:"true"`
	ShuffleBeforeSplit bool    `yaml:"shuffleBeforeSplit" env:"SIM_SHUFFLE_BEFORE_SPLIT" env-default:"false"`
	StopWhenClean      bool    `yaml:"stopWhenClean" env:"SIM_STOP_WHEN_CLEAN" env-default:"true"`
	Runs               int     `yaml:"runs" env:"SIM_RUNS" env-default:"1"`
	Workers            int     `yaml:"workers" env:"SIM_WORKERS" env-default:"4"`
}

type Metrics struct {
	Host    string `yaml:"host" env:"METRICS_HOST" env-default:"localhost"`
	Port    int    `yaml:"port" env:"METRICS_PORT" env-default:"0"`
	Address string `yaml:"-"`
}

type Store struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"sqlite3"`
	DSN    string `yaml:"dsn" env:"STORE_DSN"`
}

type Queue struct {
	URL  string `yaml:"url" env:"QUEUE_URL"`
	Name string `yaml:"name" env:"QUEUE_NAME" env-default:"tick-metrics"`
}

type Output struct {
	Dir string `yaml:"dir" env:"OUTPUT_DIR" env-default:"results"`
}

type Config struct {
	Simulation Simulation `yaml:"simulation"`
	Metrics    Metrics    `yaml:"metrics"`
	Store      Store      `yaml:"store"`
	Queue      Queue      `yaml:"queue"`
	Output     Output     `yaml:"output"`
}

// Load reads path, falling back to config.yml next to this file when path is
// empty or missing, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		if dir, err := os.Getwd(); err == nil {
			path = filepath.Join(dir, "config", "config.yml")
		}
	}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		_, currentFile, _, ok := runtime.Caller(0)
		if !ok {
			return nil, PrettyLogger.NewError("config.Load(): failed to get current file path")
		}
		cfg = &Config{}
		if err2 := cleanenv.ReadConfig(filepath.Join(filepath.Dir(currentFile), "config.yml"), cfg); err2 != nil {
			return nil, PrettyLogger.WrapError(err, "config.Load(): failed to read %s", path)
		}
	}
	cfg.resolve()
	return cfg, nil
}

// FromEnv builds a config from defaults and environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, PrettyLogger.WrapError(err, "config.FromEnv(): failed to read environment")
	}
	cfg.resolve()
	return cfg, nil
}

func (c *Config) resolve() {
	if c.Metrics.Port > 0 {
		c.Metrics.Address = fmt.Sprintf("%s:%d", c.Metrics.Host, c.Metrics.Port)
	} else {
		c.Metrics.Address = ""
	}
}

// Validate fails fast on the first invalid simulation parameter.
func (c *Config) Validate() error {
	s := c.Simulation
	if s.Users < 0 {
		return errs.Precondition("users", "must not be negative, got %d", s.Users)
	}
	if s.Attackers < 0 || s.Attackers > s.Users {
		return errs.Precondition("attackers", "must be within [0, %d], got %d", s.Users, s.Attackers)
	}
	if err := errs.Positive("capacity", s.Capacity); err != nil {
		return err
	}
	if err := errs.Positive("riskConstant", s.RiskConstant); err != nil {
		return err
	}
	if err := errs.Positive("riskPerBucket", s.RiskPerBucket); err != nil {
		return err
	}
	if s.AttackProbability < 0 || s.AttackProbability > 1 {
		return errs.Precondition("attackProbability", "must be within [0, 1], got %g", s.AttackProbability)
	}
	if s.RevealProbability < 0 || s.RevealProbability > 1 {
		return errs.Precondition("revealProbability", "must be within [0, 1], got %g", s.RevealProbability)
	}
	if s.MaxTicks < 0 {
		return errs.Precondition("maxTicks", "must not be negative, got %d", s.MaxTicks)
	}
	if s.MaxTicks == 0 && !s.StopWhenClean {
		return errs.Precondition("maxTicks", "must be set when stopWhenClean is off")
	}
	if err := errs.Positive("runs", s.Runs); err != nil {
		return err
	}
	if err := errs.Positive("workers", s.Workers); err != nil {
		return err
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return errs.Precondition("metrics.port", "must be within [0, 65535], got %d", c.Metrics.Port)
	}
	if c.Store.DSN != "" && c.Store.Driver != "sqlite3" && c.Store.Driver != "postgres" {
		return errs.Precondition("store.driver", "must be sqlite3 or postgres, got %q", c.Store.Driver)
	}
	return nil
}

func (c *Config) ToParameters() data.Parameters {
	s := c.Simulation
	return data.Parameters{
		Users:              s.Users,
		Attackers:          s.Attackers,
		Capacity:           s.Capacity,
		RiskConstant:       s.RiskConstant,
		RiskPerBucket:      s.RiskPerBucket,
		AttackProbability:  s.AttackProbability,
		RevealProbability:  s.RevealProbability,
		MaxTicks:           s.MaxTicks,
		Seed:               s.Seed,
		EvictIsolated:      s.EvictIsolated,
		ShuffleBeforeSplit: s.ShuffleBeforeSplit,
		StopWhenClean:      s.StopWhenClean,
	}
}
