package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultRules keep model spend and toolchain runs well below what the
// daily limit and a single instance can absorb.
func DefaultRules() map[Class]Rule {
	return map[Class]Rule{
		ClassPaid:    {Limit: 30, Window: time.Hour, Burst: 5},
		ClassCompile: {Limit: 60, Window: time.Hour, Burst: 10},
		ClassWrite:   {Limit: 120, Window: time.Minute, Burst: 20},
		ClassRead:    {Limit: 600, Window: time.Minute, Burst: 100},
	}
}

// DefaultConfig enables DefaultRules.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Rules:         DefaultRules(),
		Allow:         map[string]bool{},
		Deny:          map[string]bool{},
		IdleTTL:       time.Hour,
		SweepInterval: 5 * time.Minute,
	}
}

// LoadConfig starts from DefaultConfig and applies RATE_LIMIT_* overrides:
// RATE_LIMIT_ENABLED, RATE_LIMIT_<CLASS>_LIMIT, RATE_LIMIT_<CLASS>_WINDOW,
// RATE_LIMIT_<CLASS>_BURST, RATE_LIMIT_ALLOW and RATE_LIMIT_DENY (comma
// separated client IPs). Unparseable values keep the default.
func LoadConfig() *Config {
	return loadConfig(os.Getenv)
}

func loadConfig(getenv func(string) string) *Config {
	cfg := DefaultConfig()
	if v, err := strconv.ParseBool(getenv("RATE_LIMIT_ENABLED")); err == nil {
		cfg.Enabled = v
	}
	if !cfg.Enabled {
		return &cfg
	}

	for class, rule := range cfg.Rules {
		prefix := "RATE_LIMIT_" + strings.ToUpper(string(class)) + "_"
		if n, err := strconv.Atoi(getenv(prefix + "LIMIT")); err == nil {
			rule.Limit = n
		}
		if d, err := time.ParseDuration(getenv(prefix + "WINDOW")); err == nil && d > 0 {
			rule.Window = d
		}
		if n, err := strconv.Atoi(getenv(prefix + "BURST")); err == nil {
			rule.Burst = n
		}
		cfg.Rules[class] = rule
	}
	cfg.Allow = clientSet(getenv("RATE_LIMIT_ALLOW"))
	cfg.Deny = clientSet(getenv("RATE_LIMIT_DENY"))
	return &cfg
}

func clientSet(list string) map[string]bool {
	set := make(map[string]bool)
	for _, id := range strings.Split(list, ",") {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = true
		}
	}
	return set
}
