// Package output formats CLI results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format represents output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatTable
	}
}

// Printer handles formatted output
type Printer struct {
	format Format
	writer io.Writer
}

// NewPrinter creates a new printer
func NewPrinter(format Format) *Printer {
	return &Printer{
		format: format,
		writer: os.Stdout,
	}
}

// SetWriter sets the output writer
func (p *Printer) SetWriter(w io.Writer) {
	p.writer = w
}

// Print outputs data in the configured format
func (p *Printer) Print(data interface{}) error {
	switch p.format {
	case FormatYAML:
		return p.printYAML(data)
	default:
		return p.printJSON(data)
	}
}

func (p *Printer) printJSON(data interface{}) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (p *Printer) printYAML(data interface{}) error {
	enc := yaml.NewEncoder(p.writer)
	enc.SetIndent(2)
	return enc.Encode(data)
}

// EntryRow represents one snapshot entry in table output
type EntryRow struct {
	Key     string   `json:"key" yaml:"key"`
	Type    string   `json:"type" yaml:"type"`
	ID      string   `json:"id" yaml:"id"`
	Expires string   `json:"expires,omitempty" yaml:"expires,omitempty"`
	Live    bool     `json:"live" yaml:"live"`
	Tags    []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// PrintEntries prints a snapshot entry list
func (p *Printer) PrintEntries(rows []EntryRow) error {
	if p.format == FormatJSON || p.format == FormatYAML {
		return p.Print(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(p.writer, "No entries found")
		return nil
	}

	w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tTYPE\tID\tEXPIRES\tLIVE\tTAGS")
	for _, row := range rows {
		expires := row.Expires
		if expires == "" {
			expires = "-"
		}
		live := "yes"
		if !row.Live {
			live = "no"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Key,
			row.Type,
			row.ID,
			expires,
			live,
			strings.Join(row.Tags, ","),
		)
	}
	return w.Flush()
}
