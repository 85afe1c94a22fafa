package braid

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the file-loadable subset of engine settings. Hosts that keep
// engine tuning in a TOML file alongside their own config can decode the
// whole file and pass the relevant table through Config.Options.
type Config struct {
	Engine EngineConfig `toml:"engine"`
	Parser ParserConfig `toml:"parser"`
	Batch  BatchConfig  `toml:"batch"`
}

type EngineConfig struct {
	ToolRoundLimit int    `toml:"tool_round_limit"`
	SystemPrompt   string `toml:"system_prompt"`
}

type ParserConfig struct {
	// Markers is an ordered list of start/end delimiter pairs. Empty
	// keeps the built-in conventions.
	Markers []MarkerConfig `toml:"markers"`
}

type MarkerConfig struct {
	Start string `toml:"start"`
	End   string `toml:"end"`
}

type BatchConfig struct {
	ChunkSize    int    `toml:"chunk_size"`
	ChunkOverlap int    `toml:"chunk_overlap"`
	Tokenizer    string `toml:"tokenizer"` // "estimate" (default) or "tiktoken"
}

// DefaultConfig returns a Config mirroring the engine's built-in defaults.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			ToolRoundLimit: DefaultToolRoundLimit,
			SystemPrompt:   DefaultSystemPrompt,
		},
		Batch: BatchConfig{
			ChunkSize:    defaultChunkSize,
			ChunkOverlap: defaultChunkOverlap,
			Tokenizer:    "estimate",
		},
	}
}

// LoadConfig reads a TOML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Options converts the config into engine options. Zero values fall back
// to the engine defaults; an explicitly empty system prompt is honoured
// only when the field is present in the file (set it to "" there).
func (c Config) Options() []Option {
	var opts []Option
	if c.Engine.ToolRoundLimit > 0 {
		opts = append(opts, WithToolRoundLimit(c.Engine.ToolRoundLimit))
	}
	opts = append(opts, WithSystemPrompt(c.Engine.SystemPrompt))
	if len(c.Parser.Markers) > 0 {
		markers := make([]Marker, len(c.Parser.Markers))
		for i, m := range c.Parser.Markers {
			markers[i] = Marker{Start: m.Start, End: m.End}
		}
		opts = append(opts, WithMarkers(markers))
	}
	if c.Batch.ChunkSize > 0 {
		opts = append(opts, WithChunkSize(c.Batch.ChunkSize))
	}
	if c.Batch.ChunkOverlap >= 0 {
		opts = append(opts, WithChunkOverlap(c.Batch.ChunkOverlap))
	}
	if c.Batch.Tokenizer == "tiktoken" {
		opts = append(opts, WithTokenCounter(NewTiktoken()))
	}
	return opts
}
