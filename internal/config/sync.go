package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SyncConfig tunes the GitHub reconciler and the background jobs. It lives in
// sync.yml and is reloaded without a restart.
type SyncConfig struct {
	RateLimitWarnThreshold int           `mapstructure:"rateLimitWarnThreshold"`
	ImportPageSize         int           `mapstructure:"importPageSize"`
	StaleAfter             time.Duration `mapstructure:"staleAfter"`
	DeadlineWindow         time.Duration `mapstructure:"deadlineWindow"`
	EnabledJobs            []string      `mapstructure:"enabledJobs"`
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		RateLimitWarnThreshold: 100,
		ImportPageSize:         50,
		StaleAfter:             6 * time.Hour,
		DeadlineWindow:         24 * time.Hour,
	}
}

type SyncConfigHolder struct {
	current atomic.Value // holds SyncConfig
}

// NewStaticSyncConfigHolder returns a holder that never reloads. Used by tests
// and by callers that do not want a file watcher.
func NewStaticSyncConfigHolder(cfg SyncConfig) *SyncConfigHolder {
	holder := &SyncConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewSyncConfigHolder() (*SyncConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("sync")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/glichflow")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GLICHFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSyncConfig()
	v.SetDefault("sync.rateLimitWarnThreshold", defaults.RateLimitWarnThreshold)
	v.SetDefault("sync.importPageSize", defaults.ImportPageSize)
	v.SetDefault("sync.staleAfter", defaults.StaleAfter)
	v.SetDefault("sync.deadlineWindow", defaults.DeadlineWindow)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg SyncConfig
	if err := v.UnmarshalKey("sync", &cfg); err != nil {
		return nil, err
	}
	if err := validateSyncConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticSyncConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SyncConfig
		if err := v.UnmarshalKey("sync", &updated); err != nil {
			log.Printf("[sync-config] reload failed: %v", err)
			return
		}
		if err := validateSyncConfig(updated); err != nil {
			log.Printf("[sync-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[sync-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *SyncConfigHolder) Get() SyncConfig {
	return h.current.Load().(SyncConfig)
}

func validateSyncConfig(cfg SyncConfig) error {
	if cfg.RateLimitWarnThreshold < 0 {
		return errors.New("sync.rateLimitWarnThreshold cannot be negative")
	}
	if cfg.ImportPageSize <= 0 || cfg.ImportPageSize > 100 {
		return errors.New("sync.importPageSize must be between 1 and 100")
	}
	if cfg.StaleAfter <= 0 {
		return errors.New("sync.staleAfter must be positive")
	}
	if cfg.DeadlineWindow <= 0 {
		return errors.New("sync.deadlineWindow must be positive")
	}
	return nil
}
