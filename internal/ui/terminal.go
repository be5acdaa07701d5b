package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	ansiReset = "\033[0m"
	ansiGreen = "\033[32m"
	ansiRed   = "\033[31m"
	ansiBold  = "\033[1m"
)

// ShouldUseColor returns true when ANSI colors should be used on stdout.
// It respects NO_COLOR, CLICOLOR_FORCE, CLICOLOR, and TTY detection.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Status colors a build status label: passing statuses green, failing ones
// red, Regression and Fixed additionally bold.
func Status(label string, color bool) string {
	if !color {
		return label
	}
	switch label {
	case "Pass":
		return ansiGreen + label + ansiReset
	case "Fixed":
		return ansiBold + ansiGreen + label + ansiReset
	case "Fail":
		return ansiRed + label + ansiReset
	case "Regression":
		return ansiBold + ansiRed + label + ansiReset
	default:
		return label
	}
}
