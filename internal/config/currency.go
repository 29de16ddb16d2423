package config

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/taxledger/pkg/money"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CurrencyConfig overrides minor-unit scales, e.g.
//
//	currencies:
//	  scales:
//	    IDR: 0
//	    XAU: 4
type CurrencyConfig struct {
	Scales map[string]int32 `mapstructure:"scales"`
}

// CurrencyConfigHolder serves the current currency table and swaps it when
// the watched file changes. Invalid updates are ignored.
type CurrencyConfigHolder struct {
	current atomic.Value // holds money.CurrencyTable
}

func NewCurrencyConfigHolder(cfg Config) (*CurrencyConfigHolder, error) {
	v := viper.New()
	if cfg.CurrencyConfigPath != "" {
		v.SetConfigFile(cfg.CurrencyConfigPath)
	} else {
		v.SetConfigName("currencies")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/taxledger")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("TAXLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &CurrencyConfigHolder{}
	holder.current.Store(money.DefaultCurrencies())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return holder, nil
		}
		if cfg.CurrencyConfigPath == "" {
			return nil, err
		}
		return nil, fmt.Errorf("read currency config %s: %w", cfg.CurrencyConfigPath, err)
	}

	table, err := readCurrencyTable(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(table)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := readCurrencyTable(v)
		if err != nil {
			zap.L().Warn("currency config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("currency config reloaded", zap.String("file", e.Name), zap.Int("currencies", updated.Len()))
	})

	return holder, nil
}

// NewStaticCurrencyHolder serves a fixed table. Used by tests and the CLI.
func NewStaticCurrencyHolder(table money.CurrencyTable) *CurrencyConfigHolder {
	holder := &CurrencyConfigHolder{}
	holder.current.Store(table)
	return holder
}

func (h *CurrencyConfigHolder) Table() money.CurrencyTable {
	return h.current.Load().(money.CurrencyTable)
}

func readCurrencyTable(v *viper.Viper) (money.CurrencyTable, error) {
	var cfg CurrencyConfig
	if err := v.UnmarshalKey("currencies", &cfg); err != nil {
		return money.CurrencyTable{}, err
	}
	if err := validateCurrencyConfig(cfg); err != nil {
		return money.CurrencyTable{}, err
	}
	return money.NewCurrencyTable(cfg.Scales), nil
}

func validateCurrencyConfig(cfg CurrencyConfig) error {
	for code, scale := range cfg.Scales {
		if len(strings.TrimSpace(code)) != 3 {
			return fmt.Errorf("currencies.scales: invalid currency code %q", code)
		}
		if scale < 0 || scale > 8 {
			return fmt.Errorf("currencies.scales.%s: scale %d out of range 0..8", code, scale)
		}
	}
	return nil
}
