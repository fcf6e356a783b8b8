package main

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/speckit/internal/validate"
)

func checkFormat(format string) error {
	switch format {
	case validate.FormatText, validate.FormatJSON, validate.FormatYAML:
		return nil
	}
	return usagef("unknown format %q: must be text, json or yaml", format)
}

// encode writes v as indented JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	if format == validate.FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
