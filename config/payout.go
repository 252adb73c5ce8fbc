// config/payout.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// PayoutConfig carries the externally tunable payout parameters. Deployments
// override any of them through environment variables; the defaults match the
// standard compensation plan.
type PayoutConfig struct {
	// MaxChainDepth bounds the ancestor walk for fixed-pool (signup) payouts.
	MaxChainDepth int
	// LevelPercents is the per-level rate table for repeat purchases; its
	// length also bounds the walk under the percentage model.
	LevelPercents []float64
	// SponsorBonus is the flat one-time bonus paid to the immediate sponsor on
	// a signup purchase.
	SponsorBonus float64
	// PoolTotal and PoolLevels define the fixed pool split over signup chains.
	PoolTotal  float64
	PoolLevels int
	// ActivationPoints is the cumulative personal-point threshold that flips
	// an account's initialPackBought flag.
	ActivationPoints int
}

// LoadPayoutConfig reads payout tunables from the environment.
func LoadPayoutConfig() PayoutConfig {
	cfg := PayoutConfig{
		MaxChainDepth:    10,
		LevelPercents:    []float64{0.068, 0.068, 0.068, 0.068, 0.068},
		SponsorBonus:     500,
		PoolTotal:        13000,
		PoolLevels:       10,
		ActivationPoints: 100,
	}

	if v := os.Getenv("MAX_CHAIN_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			cfg.MaxChainDepth = n
		} else {
			log.Printf("Invalid MAX_CHAIN_DEPTH %q, using default", v)
		}
	}

	if v := os.Getenv("LEVEL_PERCENTS"); v != "" {
		var table []float64
		for _, part := range strings.Split(v, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				log.Printf("Invalid LEVEL_PERCENTS entry %q, using default table", part)
				table = nil
				break
			}
			table = append(table, f)
		}
		if len(table) > 0 {
			cfg.LevelPercents = table
		}
	}

	if v := os.Getenv("SPONSOR_BONUS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.SponsorBonus = f
		} else {
			log.Printf("Invalid SPONSOR_BONUS %q, using default", v)
		}
	}

	if v := os.Getenv("POOL_TOTAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.PoolTotal = f
		} else {
			log.Printf("Invalid POOL_TOTAL %q, using default", v)
		}
	}

	if v := os.Getenv("POOL_LEVELS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			cfg.PoolLevels = n
		} else {
			log.Printf("Invalid POOL_LEVELS %q, using default", v)
		}
	}

	if v := os.Getenv("ACTIVATION_POINTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ActivationPoints = n
		} else {
			log.Printf("Invalid ACTIVATION_POINTS %q, using default", v)
		}
	}

	return cfg
}
