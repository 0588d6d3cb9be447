// Package config loads the fixed system-wide constants (§6) PandOS boots
// with, the way the teacher's internal/bundle/bundle.go and
// cmd/ccapp/site_config.go load their own YAML-backed settings structs
// with gopkg.in/yaml.v3 and apply defaults in a constructor.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SystemConfig carries every fixed capacity and timing constant named in
// spec.md §6 ("System-wide constants"). Every field has a spec-mandated
// default; a YAML document only needs to override what it wants to
// change (e.g. a test harness shrinking MaxProc/PoolSize).
type SystemConfig struct {
	MaxProc     int `yaml:"max_proc"`
	MaxMessages int `yaml:"max_messages"`
	PoolSize    int `yaml:"pool_size"`
	UProcMax    int `yaml:"uproc_max"`
	MaxPages    int `yaml:"max_pages"`
	PageSize    int `yaml:"page_size"`

	// TimeSliceMillis / PseudoSecondMillis are the scheduler quantum and
	// pseudo-clock tick (§6's TIMESLICE/PSECOND), expressed in
	// milliseconds for a human-editable YAML document.
	TimeSliceMillis    int `yaml:"time_slice_ms"`
	PseudoSecondMillis int `yaml:"pseudo_second_ms"`

	SwapPoolBase      uint32 `yaml:"swap_pool_base"`
	UProcStartAddr    uint32 `yaml:"uproc_start_addr"`
	UserStackTop      uint32 `yaml:"user_stack_top"`
}

// Default returns the spec's own constants (§6), unmodified.
func Default() SystemConfig {
	return SystemConfig{
		// MaxProc must cover the SSI, the mutex mediator, and, per live
		// UProcMax user process, the process itself, its SST and two
		// device proxies (Validate enforces this: 2 + UProcMax*4).
		MaxProc:            40,
		MaxMessages:        20,
		PoolSize:           2 * 8, // 2 frames per UProcMax, a conventional sizing
		UProcMax:           8,
		MaxPages:           32,
		PageSize:           4096,
		TimeSliceMillis:    5,
		PseudoSecondMillis: 100,
		SwapPoolBase:       0x20020000,
		UProcStartAddr:     0x800000B0,
		UserStackTop:       0xC0000000,
	}
}

// Load reads a YAML document at path and overlays it on Default(). A
// missing file is not an error — callers that only want the defaults can
// pass a path that doesn't exist and get Default() back, mirroring
// bundle.Load's "config is optional" posture.
func Load(path string) (SystemConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the invariants a kernel Context's constructor relies
// on: every capacity must be positive, and the process tree PandOS boots
// (SSI + mutex mediator + UProcMax SSTs + UProcMax UProcs + 2*UProcMax
// device proxies) must fit within MaxProc.
func (c SystemConfig) Validate() error {
	if c.MaxProc <= 0 || c.MaxMessages <= 0 || c.PoolSize <= 0 {
		return fmt.Errorf("config: capacities must be positive (maxproc=%d maxmessages=%d poolsize=%d)",
			c.MaxProc, c.MaxMessages, c.PoolSize)
	}
	if c.MaxPages <= 0 || c.MaxPages > 32 {
		return fmt.Errorf("config: max_pages out of range: %d", c.MaxPages)
	}
	needed := 2 + c.UProcMax*(1+1+2) // ssi + mediator + (uproc + sst + 2 proxies) each
	if c.MaxProc < needed {
		return fmt.Errorf("config: max_proc=%d too small for uproc_max=%d (need >= %d)",
			c.MaxProc, c.UProcMax, needed)
	}
	return nil
}
