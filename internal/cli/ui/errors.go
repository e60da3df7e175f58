package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a formatted message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message describes a user-facing problem report
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Detail      string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

// Format renders a message:
//
//	✗ MODEL NOT FOUND: Cannot find model 'shop.Bok'.
//
//	   Did you mean: shop.Book?
//
//	   → List models: ormtypes models
func Format(m Message) string {
	var b strings.Builder

	var accent *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		accent, symbol = color.New(color.FgYellow, color.Bold), "!"
	case LevelInfo:
		accent, symbol = color.New(color.FgCyan, color.Bold), "i"
	default:
		accent, symbol = color.New(color.FgRed, color.Bold), "✗"
	}
	hint := color.New(color.FgCyan)
	suggest := color.New(color.FgYellow)
	if m.NoColor {
		accent.DisableColor()
		hint.DisableColor()
		suggest.DisableColor()
	}

	if m.Context != "" {
		accent.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		accent.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}
	if m.Detail != "" {
		fmt.Fprintf(&b, "   %s\n", m.Detail)
	}
	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		suggest.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}
	if len(m.Hints) > 0 {
		b.WriteString("\n")
		for _, h := range m.Hints {
			hint.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// Write renders a message to w
func Write(w io.Writer, m Message) {
	fmt.Fprint(w, Format(m))
}

// Success renders a check-marked confirmation line
func Success(w io.Writer, message string, noColor bool) {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	green.Fprintf(w, "✓ %s\n", message)
}

// ModelNotFound reports an unknown model reference
func ModelNotFound(name string, suggestions []string, noColor bool) string {
	return Format(Message{
		Context:     "model not found",
		Problem:     fmt.Sprintf("Cannot find model '%s'.", name),
		Suggestions: suggestions,
		Hints:       []string{"List models: ormtypes models"},
		NoColor:     noColor,
	})
}

// SettingsError reports a settings module that could not be booted
func SettingsError(module string, err error, noColor bool) string {
	return Format(Message{
		Context: "settings error",
		Problem: fmt.Sprintf("Cannot load settings module '%s'.", module),
		Detail:  err.Error(),
		Hints: []string{
			"Set settings_module in ormtypes.yml or pass --settings",
			"Create a configuration: ormtypes init",
		},
		NoColor: noColor,
	})
}
