package config

import (
	"fmt"
	"time"
)

var knownBrokers = map[string]bool{
	"schwab":       true,
	"tradestation": true,
	"tradier":      true,
	"alpaca":       true,
}

// accountInPath brokers carry the account id in the request path.
var accountInPath = map[string]bool{
	"schwab":       true,
	"tradestation": true,
	"tradier":      true,
}

func validate(cfg *Config) error {
	if _, err := time.LoadLocation(cfg.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone invalid: %w", err)
	}
	if _, err := time.Parse("15:04", cfg.Market.Open); err != nil {
		return fmt.Errorf("market.open must be HH:MM: %w", err)
	}
	if cfg.Fetch.PageSize < 2 {
		return fmt.Errorf("fetch.page_size must be at least 2")
	}
	enabled := 0
	seen := make(map[string]bool)
	for _, b := range cfg.Brokers {
		if !knownBrokers[b.Name] {
			return fmt.Errorf("unknown broker %q", b.Name)
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate broker entry %q", b.Name)
		}
		seen[b.Name] = true
		if !b.Enabled {
			continue
		}
		enabled++
		if b.BaseURL == "" {
			return fmt.Errorf("broker %q: base_url is required", b.Name)
		}
		if b.AccessToken == "" {
			return fmt.Errorf("broker %q: access_token is required", b.Name)
		}
		if accountInPath[b.Name] && b.AccountID == "" {
			return fmt.Errorf("broker %q: account_id is required", b.Name)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one broker must be enabled")
	}
	return nil
}
