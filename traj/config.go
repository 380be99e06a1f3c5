package traj

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notargets/gotraj/archive"
	"github.com/notargets/gotraj/parcels"
)

// Config is one trajectory run.
type Config struct {
	HistPath       string  // archive directory
	Base           string  // output base name, written to Base.nc
	Time           float64 // start time, resolved to the nearest archive time
	NTimes         int     // total archive steps to integrate
	Seed           parcels.SeedSpec
	Direction      int // 1 forward, -1 backward in time
	Workers        int
	Margin         int
	IncludeInvalid bool
	Tolerance      float64
	MemLimit       int64 // bytes per rank, 0 for no limit
}

// Check reports every problem with the configuration at once.
func (c *Config) Check() (err error) {
	var (
		problems []string
	)
	if c.HistPath == "" {
		problems = append(problems, "archive path is required")
	}
	if c.Base == "" {
		problems = append(problems, "output base name is required")
	}
	if c.NTimes < 1 {
		problems = append(problems, fmt.Sprintf("number of steps must be positive, have %d", c.NTimes))
	}
	if c.Workers < 1 {
		problems = append(problems, fmt.Sprintf("worker count must be positive, have %d", c.Workers))
	}
	if c.Direction != 1 && c.Direction != -1 {
		problems = append(problems, fmt.Sprintf("direction must be 1 or -1, have %d", c.Direction))
	}
	if c.Seed.Count() < 1 {
		problems = append(problems, fmt.Sprintf("seed lattice is empty: %s", c.Seed))
	}
	if len(problems) != 0 {
		err = errors.New(strings.Join(problems, "; "))
	}
	return
}

func (c *Config) OutputPath() string {
	return c.Base + ".nc"
}

func (c *Config) tolerance() float64 {
	if c.Tolerance > 0 {
		return c.Tolerance
	}
	return archive.DefaultTimeTolerance
}
