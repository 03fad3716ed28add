package config

import "strings"

const (
	defaultLogLevel         = "info"
	defaultHTTPAddr         = ":8090"
	defaultTimezone         = "America/New_York"
	defaultOpen             = "09:30"
	defaultPageSize         = 500
	defaultConcurrency      = 4
	defaultRefreshSeconds   = 60
	defaultBrokerTimeoutSec = 15
	defaultJournalPath      = "data/journal.db"
	defaultArchivePath      = "data/rawarchive.db"
	defaultSchemaPath       = "configs/schemas.yaml"
)

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultLogLevel
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = defaultHTTPAddr
	}
	if c.Market.Timezone == "" {
		c.Market.Timezone = defaultTimezone
	}
	if c.Market.Open == "" {
		c.Market.Open = defaultOpen
	}
	if c.Fetch.PageSize <= 0 {
		c.Fetch.PageSize = defaultPageSize
	}
	if c.Fetch.Concurrency <= 0 {
		c.Fetch.Concurrency = defaultConcurrency
	}
	if c.Account.RefreshIntervalSeconds <= 0 {
		c.Account.RefreshIntervalSeconds = defaultRefreshSeconds
	}
	if c.Store.JournalPath == "" {
		c.Store.JournalPath = defaultJournalPath
	}
	if c.Store.ArchivePath == "" {
		c.Store.ArchivePath = defaultArchivePath
	}
	if c.Schema.Path == "" {
		c.Schema.Path = defaultSchemaPath
	}
	for i := range c.Brokers {
		c.Brokers[i].Name = strings.ToLower(strings.TrimSpace(c.Brokers[i].Name))
		if c.Brokers[i].TimeoutSeconds <= 0 {
			c.Brokers[i].TimeoutSeconds = defaultBrokerTimeoutSec
		}
	}
}
