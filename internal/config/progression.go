package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ProgressionConfig tunes the level curve and the read models derived from the ledger.
type ProgressionConfig struct {
	LevelBase           int64  `mapstructure:"levelBase"`
	LevelStep           int64  `mapstructure:"levelStep"`
	SavingsDomainKey    string `mapstructure:"savingsDomainKey"`
	DefaultWeeklyTarget int64  `mapstructure:"defaultWeeklyTarget"`
	FirstDayOfWeek      int    `mapstructure:"firstDayOfWeek"`
	RecentHistoryLimit  int    `mapstructure:"recentHistoryLimit"`
	// MaxAwardPerLog caps the XP and points a single log may carry.
	MaxAwardPerLog int64 `mapstructure:"maxAwardPerLog"`
}

func DefaultProgressionConfig() ProgressionConfig {
	return ProgressionConfig{
		LevelBase:           100,
		LevelStep:           25,
		SavingsDomainKey:    "money",
		DefaultWeeklyTarget: 100,
		FirstDayOfWeek:      1,
		RecentHistoryLimit:  20,
		MaxAwardPerLog:      100000,
	}
}

type ProgressionConfigHolder struct {
	current atomic.Value // holds ProgressionConfig
}

// NewStaticProgressionConfigHolder returns a holder that never reloads.
func NewStaticProgressionConfigHolder(cfg ProgressionConfig) *ProgressionConfigHolder {
	holder := &ProgressionConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewProgressionConfigHolder(log *zap.Logger) (*ProgressionConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.progression")

	v := viper.New()

	v.SetConfigName("progression")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/habitquest")
	v.AddConfigPath(".")

	v.SetEnvPrefix("HABITQUEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultProgressionConfig()
	v.SetDefault("progression.levelBase", defaults.LevelBase)
	v.SetDefault("progression.levelStep", defaults.LevelStep)
	v.SetDefault("progression.savingsDomainKey", defaults.SavingsDomainKey)
	v.SetDefault("progression.defaultWeeklyTarget", defaults.DefaultWeeklyTarget)
	v.SetDefault("progression.firstDayOfWeek", defaults.FirstDayOfWeek)
	v.SetDefault("progression.recentHistoryLimit", defaults.RecentHistoryLimit)
	v.SetDefault("progression.maxAwardPerLog", defaults.MaxAwardPerLog)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg ProgressionConfig
	if err := v.UnmarshalKey("progression", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateProgressionConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ProgressionConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ProgressionConfig
		if err := v.UnmarshalKey("progression", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := ValidateProgressionConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *ProgressionConfigHolder) Get() ProgressionConfig {
	if h == nil {
		return DefaultProgressionConfig()
	}
	cfg, ok := h.current.Load().(ProgressionConfig)
	if !ok {
		return DefaultProgressionConfig()
	}
	return cfg
}

func ValidateProgressionConfig(cfg ProgressionConfig) error {
	if cfg.LevelBase <= 0 {
		return errors.New("progression.levelBase must be positive")
	}
	if cfg.LevelStep < 0 {
		return errors.New("progression.levelStep cannot be negative")
	}
	if cfg.DefaultWeeklyTarget < 0 {
		return errors.New("progression.defaultWeeklyTarget cannot be negative")
	}
	if cfg.FirstDayOfWeek < 0 || cfg.FirstDayOfWeek > 6 {
		return errors.New("progression.firstDayOfWeek must be within 0..6")
	}
	if cfg.MaxAwardPerLog <= 0 {
		return errors.New("progression.maxAwardPerLog must be positive")
	}
	if strings.TrimSpace(cfg.SavingsDomainKey) == "" {
		return errors.New("progression.savingsDomainKey cannot be empty")
	}
	return nil
}
