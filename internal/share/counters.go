package share

import (
	"github.com/tildaslashalef/driveshare/internal/loggy"
)

// Counters are the engine's aggregate progress counters. They are owned by
// the coordinator goroutine; nothing else mutates them. Because a resumed
// snapshot can carry drifted values, every mutation is followed by Validate,
// which clamps the counters back into their invariants instead of failing.
type Counters struct {
	Total         int `json:"total"`
	Processed     int `json:"processed"`
	Successful    int `json:"successful"`
	Failed        int `json:"failed"`
	Errors        int `json:"errors"`
	ActiveWorkers int `json:"activeWorkers"`
	WorkerCount   int `json:"workerCount"`
}

// Valid reports whether the counters satisfy their invariants without
// mutating them. Used when deciding whether a restored snapshot's counters
// can be trusted.
func (c *Counters) Valid() bool {
	if c.Total < 0 || c.Processed < 0 || c.Successful < 0 || c.Failed < 0 || c.Errors < 0 {
		return false
	}
	if c.Processed > c.Total {
		return false
	}
	if c.Successful+c.Failed > c.Processed {
		return false
	}
	return true
}

// Validate clamps the counters back into their invariants:
//
//   - processed within [0, total]
//   - successful, failed, errors non-negative
//   - successful+failed scaled down proportionally if they exceed processed
//   - activeWorkers within [0, workerCount]
//
// Repairs are logged, not fatal. Returns true if anything was repaired.
func (c *Counters) Validate(logger *loggy.Logger) bool {
	repaired := false

	if c.Total < 0 {
		c.Total = 0
		repaired = true
	}
	if c.Processed < 0 {
		c.Processed = 0
		repaired = true
	}
	if c.Processed > c.Total {
		c.Processed = c.Total
		repaired = true
	}
	if c.Successful < 0 {
		c.Successful = 0
		repaired = true
	}
	if c.Failed < 0 {
		c.Failed = 0
		repaired = true
	}
	if c.Errors < 0 {
		c.Errors = 0
		repaired = true
	}

	if sum := c.Successful + c.Failed; sum > c.Processed {
		// Scale both down proportionally, flooring
		scale := float64(c.Processed) / float64(sum)
		c.Successful = int(float64(c.Successful) * scale)
		c.Failed = int(float64(c.Failed) * scale)
		repaired = true
	}

	if c.ActiveWorkers < 0 {
		c.ActiveWorkers = 0
		repaired = true
	}
	if c.WorkerCount > 0 && c.ActiveWorkers > c.WorkerCount {
		c.ActiveWorkers = c.WorkerCount
		repaired = true
	}

	if repaired && logger != nil {
		logger.Warn("Progress counters repaired after invariant violation",
			"total", c.Total,
			"processed", c.Processed,
			"successful", c.Successful,
			"failed", c.Failed,
			"errors", c.Errors,
			"active_workers", c.ActiveWorkers,
		)
	}

	return repaired
}

// Remaining returns how many recipients are still unprocessed
func (c *Counters) Remaining() int {
	if c.Total < c.Processed {
		return 0
	}
	return c.Total - c.Processed
}

// Percent returns processed as a whole percentage of total
func (c *Counters) Percent() int {
	if c.Total == 0 {
		return 0
	}
	return c.Processed * 100 / c.Total
}
