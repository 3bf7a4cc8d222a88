// Package sysload samples local resource pressure for load-aware routing.
package sysload

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Sampler reports the current load ratio: instantaneous load average
// divided by logical core count. A ratio of 1.0 means fully loaded.
type Sampler interface {
	Ratio() float64
}

// ProcSampler reads the one-minute load average from /proc/loadavg.
// On platforms or failures where the file cannot be read, Ratio returns 0
// so load-aware promotion simply never fires.
type ProcSampler struct {
	path string
}

func NewProcSampler() *ProcSampler {
	return &ProcSampler{path: "/proc/loadavg"}
}

func (s *ProcSampler) Ratio() float64 {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0
	}
	load1, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	cores := runtime.NumCPU()
	if cores < 1 {
		cores = 1
	}
	return load1 / float64(cores)
}

// Fixed is a test sampler returning a constant ratio.
type Fixed float64

func (f Fixed) Ratio() float64 { return float64(f) }
