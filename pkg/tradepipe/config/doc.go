/*
Package config provides type-safe configuration extraction from map[string]any.

# Overview

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values.
This is useful for extracting pipeline settings from YAML/JSON structures
without verbose type assertions and nil checks.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "enqueue_timeout": "250ms",
	    "capacity":        512,
	    "paper_trading":   true,
	})

	timeout := cfg.Duration("enqueue_timeout", 100*time.Millisecond) // 250ms
	capacity := cfg.Int("capacity", 256)                             // 512
	paper := cfg.Bool("paper_trading", false)                        // true
	missing := cfg.String("symbol", "BTC-USD")                       // "BTC-USD"

# Type Coercion

Duration handles multiple input types:
  - string: parsed with time.ParseDuration ("250ms", "1h30m")
  - int/float64: interpreted as seconds
  - time.Duration: used directly

Numeric types handle reasonable conversions:
  - int from float64 (truncated)
  - float64 from int

All methods return the default value if:
  - The key is missing
  - The value cannot be converted to the requested type
  - The conversion would lose precision (e.g., float to int with fraction)

# Nested Sections

Sub extracts a nested map as its own Config, so sectioned files read
naturally:

	queues := cfg.Sub("queues")
	data := queues.Sub("data")
	capacity := data.Int("capacity", 1024)

# File Loading

Load configuration from YAML or JSON files:

	cfg, err := config.FromFile("pipeline.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	// Or load from bytes
	cfg, err = config.FromYAML(yamlBytes)
	cfg, err = config.FromJSON(jsonBytes)

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation. However, if the original map is modified
externally, behavior is undefined.
*/
package config
