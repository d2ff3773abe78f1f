// Package config holds the link-info options of one link.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Shared    bool `yaml:"shared"`
	Bsymbolic bool `yaml:"bsymbolic"`
	Relax     bool `yaml:"relax"`
	Ex9       bool `yaml:"ex9"`
	IFC       bool `yaml:"ifc"`
	FPAsGP    bool `yaml:"fp_as_gp"`

	Ex9Limit  int    `yaml:"ex9_limit"`
	Ex9Import string `yaml:"ex9_import"`
	Ex9Export string `yaml:"ex9_export"`

	ExportSymbols string `yaml:"export_symbols"`

	FPAsGPThreshold int  `yaml:"fp_as_gp_threshold"`
	IFCLoopAware    bool `yaml:"ifc_loop_aware"`

	TextBase  uint32 `yaml:"text_base"`
	DataAlign uint32 `yaml:"data_align"`
	BigEndian bool   `yaml:"big_endian"`

	// legacy REL kinds keep linking when their fields overflow
	TolerateLegacyOverflow bool `yaml:"tolerate_legacy_overflow"`

	// extra small-data candidate sections and sections never relaxed,
	// doublestar patterns over input section names
	SDASections  []string `yaml:"sda_sections"`
	RelaxExclude []string `yaml:"relax_exclude"`

	Verbose bool `yaml:"verbose"`
}

const (
	DefaultTextBase  = 0x500000
	DefaultDataAlign = 0x1000
	DefaultEx9Limit  = 511
	DefaultThreshold = 3
)

func Default() *Options {
	return &Options{
		Relax:           true,
		Ex9Limit:        DefaultEx9Limit,
		FPAsGPThreshold: DefaultThreshold,
		IFCLoopAware:    true,
		TextBase:        DefaultTextBase,
		DataAlign:       DefaultDataAlign,
	}
}

// Load reads a YAML options file on top of the defaults.
func Load(path string) (*Options, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read link options %s failed: %w", path, err)
	}
	opts, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("link options %s: %w", path, err)
	}
	return opts, nil
}

// Parse decodes YAML link options. Unknown keys are rejected.
func Parse(b []byte) (*Options, error) {
	opts := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *Options) Validate() error {
	if o.Ex9Limit < 0 || o.Ex9Limit > 512 {
		return fmt.Errorf("ex9_limit %d out of range [0, 512]", o.Ex9Limit)
	}
	if o.FPAsGPThreshold < 1 {
		return fmt.Errorf("fp_as_gp_threshold %d must be positive", o.FPAsGPThreshold)
	}
	if o.TextBase&3 != 0 {
		return fmt.Errorf("text_base 0x%x is not 4-byte aligned", o.TextBase)
	}
	if o.DataAlign == 0 || o.DataAlign&(o.DataAlign-1) != 0 {
		return fmt.Errorf("data_align 0x%x is not a power of two", o.DataAlign)
	}
	for _, p := range o.SDASections {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("bad sda_sections pattern %q", p)
		}
	}
	for _, p := range o.RelaxExclude {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("bad relax_exclude pattern %q", p)
		}
	}
	return nil
}

func match(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// MatchSDA reports whether section name is an extra small-data candidate.
func (o *Options) MatchSDA(name string) bool {
	return match(o.SDASections, name)
}

// Excluded reports whether section name must never be relaxed.
func (o *Options) Excluded(name string) bool {
	return match(o.RelaxExclude, name)
}
