// Package config loads the typed option structs (MergeOptions,
// ParallelPipelineOptions, FlatDiffableOptions) this module exposes
// as plain YAML-tagged structs: start from an in-code default, then
// overlay whatever the YAML file sets (`yaml.Unmarshal` into a struct
// already populated with defaults, rather than a two-pass merge).
package config

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/aadil-01/perforator/flatdiff"
	"github.com/aadil-01/perforator/merge"
	"github.com/aadil-01/perforator/parallelmerge"
)

// LabelFilter mirrors merge.LabelFilter with yaml tags.
type LabelFilter struct {
	SkippedKeyPrefixes []string `yaml:"skippedKeyPrefixes,omitempty"`
	AllowedKeys        []string `yaml:"allowedKeys,omitempty"`
}

// MergeOptions mirrors merge.Options with yaml tags.
type MergeOptions struct {
	IgnoreProcessIDs   bool        `yaml:"ignoreProcessIds,omitempty"`
	IgnoreThreadIDs    bool        `yaml:"ignoreThreadIds,omitempty"`
	IgnoreTimestamps   bool        `yaml:"ignoreTimestamps,omitempty"`
	CleanupThreadNames bool        `yaml:"cleanupThreadNames,omitempty"`
	LabelFilter        LabelFilter `yaml:"labelFilter,omitempty"`
}

// ToMergeOptions converts to the merge package's runtime Options. The
// caller attaches Logger/Metrics afterward; those aren't config-file
// fields, they're wired programmatically.
func (o MergeOptions) ToMergeOptions() merge.Options {
	return merge.Options{
		IgnoreProcessIDs:   o.IgnoreProcessIDs,
		IgnoreThreadIDs:    o.IgnoreThreadIDs,
		IgnoreTimestamps:   o.IgnoreTimestamps,
		CleanupThreadNames: o.CleanupThreadNames,
		LabelFilter: merge.LabelFilter{
			SkippedKeyPrefixes: o.LabelFilter.SkippedKeyPrefixes,
			AllowedKeys:        o.LabelFilter.AllowedKeys,
		},
	}
}

// ParallelPipelineOptions mirrors parallelmerge.Options with yaml
// tags.
type ParallelPipelineOptions struct {
	Merge            MergeOptions `yaml:"merge,omitempty"`
	ConcurrencyLevel uint32       `yaml:"concurrencyLevel,omitempty"`
	BufferSize       uint32       `yaml:"bufferSize,omitempty"`
}

// ToPipelineOptions converts to the parallelmerge package's runtime
// Options.
func (o ParallelPipelineOptions) ToPipelineOptions() parallelmerge.Options {
	return parallelmerge.Options{
		MergeOptions:     o.Merge.ToMergeOptions(),
		ConcurrencyLevel: o.ConcurrencyLevel,
		BufferSize:       o.BufferSize,
	}
}

// FlatDiffableOptions mirrors flatdiff.Options with yaml tags.
type FlatDiffableOptions struct {
	PrintTimestamps bool `yaml:"printTimestamps,omitempty"`
	PrintBuildIDs   bool `yaml:"printBuildIds,omitempty"`
	PrintAddresses  bool `yaml:"printAddresses,omitempty"`
}

// ToFlatDiffableOptions converts to the flatdiff package's runtime
// Options.
func (o FlatDiffableOptions) ToFlatDiffableOptions() flatdiff.Options {
	return flatdiff.Options{
		PrintTimestamps: o.PrintTimestamps,
		PrintBuildIDs:   o.PrintBuildIDs,
		PrintAddresses:  o.PrintAddresses,
	}
}

// Config is the top-level file shape cmd/profilemerge reads.
type Config struct {
	Pipeline   ParallelPipelineOptions `yaml:"pipeline,omitempty"`
	FlatDiff   FlatDiffableOptions     `yaml:"flatDiff,omitempty"`
	Workers    uint32                  `yaml:"workers,omitempty"`
}

// Default returns the zero-value-safe default configuration: serial
// merging (ConcurrencyLevel 0 is treated as 1 worker by
// parallelmerge), no filters, no timestamp/build-id/address printing.
func Default() Config {
	return Config{
		Pipeline: ParallelPipelineOptions{
			ConcurrencyLevel: 1,
			BufferSize:       2,
		},
	}
}

// Load reads a YAML file at path and unmarshals it over Default(),
// so a config file only needs to set the fields it wants to override.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
