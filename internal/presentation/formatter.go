package presentation

import (
	"encoding/json"
	"io"
)

// Formatter writes command output as indented JSON.
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatApi writes one record.
func (f *Formatter) FormatApi(api ApiDTO) error {
	return f.encode(api)
}

// FormatNames writes a name list; an empty list is written as [].
func (f *Formatter) FormatNames(names []string) error {
	if names == nil {
		names = []string{}
	}
	return f.encode(names)
}

// FormatFlags writes feature flag values keyed by name.
func (f *Formatter) FormatFlags(values map[string]bool) error {
	if values == nil {
		values = map[string]bool{}
	}
	return f.encode(values)
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
