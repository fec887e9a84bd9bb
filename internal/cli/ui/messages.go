// Package ui renders the relmap command output.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message describes a formatted problem report
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Suggestions []string
	Help        []string
	NoColor     bool
}

// Format renders the message
//
// Example output:
//
//	x UNKNOWN ENTITY: Boook
//	   Did you mean: Book?
//
//	   -> List mapped entities: relmap metadata list
func Format(m Message) string {
	var b strings.Builder

	var header *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		header, symbol = color.New(color.FgYellow, color.Bold), "!"
	case LevelInfo:
		header, symbol = color.New(color.FgCyan, color.Bold), "i"
	default:
		header, symbol = color.New(color.FgRed, color.Bold), "x"
	}
	hint := color.New(color.FgYellow)
	help := color.New(color.FgCyan)
	if m.NoColor {
		header.DisableColor()
		hint.DisableColor()
		help.DisableColor()
	}

	if m.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}

	if len(m.Suggestions) > 0 {
		hint.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}

	if len(m.Help) > 0 {
		b.WriteString("\n")
		for _, line := range m.Help {
			help.Fprintf(&b, "   -> %s\n", line)
		}
	}

	return b.String()
}

// Write renders the message to w
func Write(w io.Writer, m Message) {
	fmt.Fprint(w, Format(m))
}

// Success writes a success line
func Success(w io.Writer, message string, noColor bool) {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	green.Fprintf(w, "✓ %s\n", message)
}

// UnknownEntity reports an entity name missing from the mapping directory
func UnknownEntity(name string, known []string, noColor bool) string {
	return Format(Message{
		Context:     "unknown entity",
		Problem:     name,
		Suggestions: Similar(name, known, 3),
		Help:        []string{"List mapped entities: relmap metadata list"},
		NoColor:     noColor,
	})
}

// ConfigError reports an unusable configuration
func ConfigError(err error, noColor bool) string {
	return Format(Message{
		Context: "configuration error",
		Problem: err.Error(),
		Help: []string{
			"View config: cat relmap.yml",
			"Get help: relmap --help",
		},
		NoColor: noColor,
	})
}

// SchemaError reports a failed schema statement batch
func SchemaError(err error, noColor bool) string {
	return Format(Message{
		Context: "schema update failed",
		Problem: err.Error(),
		Help:    []string{"Preview the statements: relmap schema sql"},
		NoColor: noColor,
	})
}
