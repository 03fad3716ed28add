package config

import "strings"

// Config is the top-level configuration carrier.
type Config struct {
	App     AppConfig      `toml:"app"`
	Market  MarketConfig   `toml:"market"`
	Fetch   FetchConfig    `toml:"fetch"`
	Account AccountConfig  `toml:"account"`
	Store   StoreConfig    `toml:"store"`
	Schema  SchemaConfig   `toml:"schema"`
	Brokers []BrokerConfig `toml:"brokers"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// MarketConfig pins the trading session the day windows are cut against.
type MarketConfig struct {
	Timezone string `toml:"timezone"`
	Open     string `toml:"open"` // "HH:MM" session open in the market timezone
}

type FetchConfig struct {
	PageSize    int  `toml:"page_size"`
	Concurrency int  `toml:"concurrency"`
	PartialOK   bool `toml:"partial_ok"`
}

type AccountConfig struct {
	RefreshIntervalSeconds int `toml:"refresh_interval_seconds"`
}

type StoreConfig struct {
	JournalPath string `toml:"journal_path"`
	ArchivePath string `toml:"archive_path"`
}

type SchemaConfig struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}

// BrokerConfig describes one brokerage connection. AccountID stays empty for
// brokers that scope the account by credential.
type BrokerConfig struct {
	Name           string `toml:"name"`
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	AccountID      string `toml:"account_id"`
	AccessToken    string `toml:"access_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// EnabledBrokers filters the broker list down to the enabled entries.
func (c *Config) EnabledBrokers() []BrokerConfig {
	out := make([]BrokerConfig, 0, len(c.Brokers))
	for _, b := range c.Brokers {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out
}

// Broker looks up a broker entry by name, enabled or not.
func (c *Config) Broker(name string) (BrokerConfig, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, b := range c.Brokers {
		if strings.ToLower(b.Name) == name {
			return b, true
		}
	}
	return BrokerConfig{}, false
}
