package config

import (
	"path/filepath"
	"strings"

	"github.com/unkn0wn-root/lrconv/internal/errdef"
	"github.com/unkn0wn-root/lrconv/internal/lrscript"
	"github.com/unkn0wn-root/lrconv/internal/vars"
)

type OutputFormat string

const (
	OutputYAML OutputFormat = "yaml"
	OutputJSON OutputFormat = "json"
)

const (
	HistoryMaxEntriesDefault = 200
	HistoryMaxEntriesMin     = 1
	HistoryMaxEntriesMax     = 10000
)

func DefaultSettings() Settings {
	left, right := lrscript.DefaultSyntax().Markers()
	return Settings{
		LeftBrace:  left,
		RightBrace: right,
		Output:     OutputSettings{Format: OutputYAML},
		History:    HistorySettings{MaxEntries: HistoryMaxEntriesDefault},
	}
}

// NormaliseSettings fills blanks with defaults and clamps out-of-range values.
func NormaliseSettings(in Settings) Settings {
	out := in
	def := DefaultSettings()
	if strings.TrimSpace(out.LeftBrace) == "" || strings.TrimSpace(out.RightBrace) == "" {
		out.LeftBrace, out.RightBrace = def.LeftBrace, def.RightBrace
	}
	out.Output.Format = ParseOutputFormat(string(in.Output.Format), def.Output.Format)
	out.History.MaxEntries = clampInt(
		in.History.MaxEntries,
		HistoryMaxEntriesMin,
		HistoryMaxEntriesMax,
		HistoryMaxEntriesDefault,
	)
	out.VariablesFile = strings.TrimSpace(in.VariablesFile)
	out.History.Path = strings.TrimSpace(in.History.Path)
	return out
}

func ParseOutputFormat(in string, def OutputFormat) OutputFormat {
	switch strings.ToLower(strings.TrimSpace(in)) {
	case string(OutputYAML), "yml":
		return OutputYAML
	case string(OutputJSON):
		return OutputJSON
	default:
		return def
	}
}

// HistoryPath falls back to history.db next to the settings.
func (s Settings) HistoryPath() string {
	if s.History.Path != "" {
		return s.History.Path
	}
	return filepath.Join(Dir(), "history.db")
}

// Syntax builds the parameter syntax. Entries of the variables file are
// overridden by inline variables. A relative file is resolved against base.
func (s Settings) Syntax(base string) (lrscript.Syntax, error) {
	syn := lrscript.DefaultSyntax()
	if s.LeftBrace != "" && s.RightBrace != "" {
		syn.Left, syn.Right = s.LeftBrace, s.RightBrace
	}
	mapping := vars.Mapping{}
	if s.VariablesFile != "" {
		path := s.VariablesFile
		if !filepath.IsAbs(path) && base != "" {
			path = filepath.Join(base, path)
		}
		fromFile, err := vars.LoadMappingFile(path)
		if err != nil {
			return lrscript.Syntax{}, errdef.Wrap(errdef.CodeConfig, err, "variables file")
		}
		mapping = fromFile
	}
	if len(s.Variables) > 0 {
		mapping = mapping.Merge(vars.Mapping(s.Variables))
	}
	if len(mapping) > 0 {
		syn.Vars = mapping
	}
	return syn, nil
}

func clampInt(value, min, max, fallback int) int {
	if value == 0 {
		return fallback
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
