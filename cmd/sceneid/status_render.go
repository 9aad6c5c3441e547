package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tag, color := statusKindStyle(kind)

	var b strings.Builder
	b.WriteString(statusIndent)
	fmt.Fprintf(&b, "%-*s", statusLabelWidth, label+":")
	b.WriteString(" [")
	b.WriteString(tag)
	b.WriteString("]")
	if message != "" {
		b.WriteString(" ")
		b.WriteString(message)
	}
	if colorize && color != "" {
		return color + b.String() + ansiReset
	}
	return b.String()
}

func statusKindStyle(kind statusKind) (tag, color string) {
	switch kind {
	case statusOK:
		return "OK", ansiGreen
	case statusWarn:
		return "WARN", ansiYellow
	case statusError:
		return "ERROR", ansiRed
	default:
		return "INFO", ansiBlue
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
