// Package config loads the Controller's YAML configuration file,
// supplementing the struct-of-durations-with-defaults pattern of
// session/config.go's TCPConfig with a file-backed source. See
// SPEC_FULL.md §2.3.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pascaldekloe/isdnsig/q921"
	"github.com/pascaldekloe/isdnsig/q931"
)

// File is the on-disk YAML shape. Every duration field is expressed in
// milliseconds, matching the timer tables spec.md §6 prints.
type File struct {
	Network   bool   `yaml:"network"`
	PTMP      bool   `yaml:"point_to_multipoint"`
	Variant   string `yaml:"variant"`
	HangupFix bool   `yaml:"hangup_fix"`
	Overlap   bool   `yaml:"overlap_dial"`

	Timers struct {
		T200Ms uint `yaml:"t200_ms"`
		T203Ms uint `yaml:"t203_ms"`
		N200   uint `yaml:"n200"`
		N202   uint `yaml:"n202"`

		T303Ms uint `yaml:"t303_ms"`
		T305Ms uint `yaml:"t305_ms"`
		T308Ms uint `yaml:"t308_ms"`
		T309Ms uint `yaml:"t309_ms"`
		T310Ms uint `yaml:"t310_ms"`
		T313Ms uint `yaml:"t313_ms"`
	} `yaml:"timers"`

	Device string `yaml:"device"`
}

// Config is the checked, defaulted configuration handed to the
// Controller: a Q.921 link config, the Q.931 timer durations, and the
// resolved device path. The Q.931 durations are read and defaulted here
// but not applied: calls arm the q931 Default timer constants.
type Config struct {
	Link    q921.Config
	Variant q931.Variant

	HangupFix bool
	Overlap   bool

	T303, T305, T308, T309, T310, T313 time.Duration

	Device string
}

// Load reads and validates a YAML configuration file at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f.check()
}

var variantNames = map[string]q931.Variant{
	"":        q931.VariantEuroISDNE1,
	"ni1":     q931.VariantNI1,
	"ni2":     q931.VariantNI2,
	"4ess":    q931.Variant4ESS,
	"5ess":    q931.Variant5E,
	"dms100":  q931.VariantDMS100,
	"euro-e1": q931.VariantEuroISDNE1,
	"euro-t1": q931.VariantEuroISDNT1,
	"qsig":    q931.VariantQSIG,
}

// check applies spec.md §6 default timers for every unset duration and
// resolves the variant name, the Check() counterpart of session/
// config.go's TCPConfig.check(): panics are reserved for the link
// layer's own check(), which the Controller calls separately; this
// method only returns errors, since a malformed YAML file is user input,
// not a programming mistake.
func (f File) check() (Config, error) {
	variant, ok := variantNames[f.Variant]
	if !ok {
		return Config{}, fmt.Errorf("config: unknown variant %q", f.Variant)
	}

	c := Config{
		Variant:   variant,
		HangupFix: f.HangupFix,
		Overlap:   f.Overlap,
		Device:    f.Device,
		Link: q921.Config{
			Network:           f.Network,
			PointToMultipoint: f.PTMP,
			N200:              f.Timers.N200,
			N202:              f.Timers.N202,
			T200:              msOrDefault(f.Timers.T200Ms, 0),
			T203:              msOrDefault(f.Timers.T203Ms, 0),
		},
		T303: msOrDefault(f.Timers.T303Ms, q931.DefaultT303),
		T305: msOrDefault(f.Timers.T305Ms, q931.DefaultT305),
		T308: msOrDefault(f.Timers.T308Ms, q931.DefaultT308),
		T309: msOrDefault(f.Timers.T309Ms, q931.DefaultT309),
		T310: msOrDefault(f.Timers.T310Ms, q931.DefaultT310),
		T313: msOrDefault(f.Timers.T313Ms, q931.DefaultT313),
	}
	if f.Device == "" {
		return Config{}, fmt.Errorf("config: device path is required")
	}
	return c, nil
}

func msOrDefault(ms uint, def time.Duration) time.Duration {
	if ms == 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
