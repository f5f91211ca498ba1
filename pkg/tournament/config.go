// Package tournament runs multi-format tournaments between game players:
// single elimination, double elimination, round robin and Swiss.
package tournament

import (
	"fmt"
	"math"
	"math/bits"
)

// Format names a tournament structure.
type Format string

const (
	SingleElimination Format = "single_elimination"
	DoubleElimination Format = "double_elimination"
	RoundRobin        Format = "round_robin"
	Swiss             Format = "swiss"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{SingleElimination, RoundRobin, Swiss, DoubleElimination}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported tournament format %q", s)
}

// Config controls how a tournament is scheduled.
type Config struct {
	Format         Format `json:"format" yaml:"format"`
	BestOf         int    `json:"best_of" yaml:"best_of"`
	ShufflePlayers bool   `json:"shuffle_players" yaml:"shuffle_players"`
	Seed           int64  `json:"seed" yaml:"seed"`
	MaxRounds      int    `json:"max_rounds" yaml:"max_rounds"`
}

// DefaultConfig is a best-of-one single elimination bracket.
func DefaultConfig() Config {
	return Config{
		Format:         SingleElimination,
		BestOf:         1,
		ShufflePlayers: true,
		Seed:           42,
		MaxRounds:      10,
	}
}

// Normalize forces BestOf to a positive odd number and fills empty fields.
func (c *Config) Normalize() {
	if c.Format == "" {
		c.Format = SingleElimination
	}
	if c.BestOf < 1 {
		c.BestOf = 1
	}
	if c.BestOf%2 == 0 {
		c.BestOf++
	}
	if c.MaxRounds < 1 {
		c.MaxRounds = 10
	}
}

// WinsNeeded is the number of game wins that clinches a match.
func (c Config) WinsNeeded() int {
	return (c.BestOf + 1) / 2
}

// EstimateTotalRounds predicts the number of rounds for n players.
func EstimateTotalRounds(format Format, n, maxRounds int) int {
	if n < 2 {
		return 0
	}
	switch format {
	case SingleElimination:
		return ceilLog2(n)
	case RoundRobin:
		if n%2 == 1 {
			return n
		}
		return n - 1
	case Swiss:
		return min(maxRounds, ceilLog2(n))
	default:
		return n
	}
}

func ceilLog2(n int) int {
	if n <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(n))))
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
