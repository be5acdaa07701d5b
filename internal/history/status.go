package history

import (
	"fmt"
	"image/color"
)

// Status classifies a build's result relative to the previous build.
type Status string

const (
	StatusPass       Status = "Pass"       // passed, was passing
	StatusFixed      Status = "Fixed"      // passed, was failing
	StatusFail       Status = "Fail"       // failed, was failing
	StatusRegression Status = "Regression" // failed, was passing
)

// Style is how a status is drawn on the history graph.
type Style struct {
	Color string      // CSS color handed to the page
	RGBA  color.NRGBA // same color for image output
	Y     int
}

var statusStyles = map[Status]Style{
	StatusPass:       {Color: "rgba(0,255,0,0.8)", RGBA: color.NRGBA{R: 0, G: 255, B: 0, A: 204}, Y: 1},
	StatusFixed:      {Color: "rgba(0,128,0,0.8)", RGBA: color.NRGBA{R: 0, G: 128, B: 0, A: 204}, Y: 1},
	StatusFail:       {Color: "rgba(255,0,0,0.8)", RGBA: color.NRGBA{R: 255, G: 0, B: 0, A: 204}, Y: -1},
	StatusRegression: {Color: "rgba(128,0,0,0.8)", RGBA: color.NRGBA{R: 128, G: 0, B: 0, A: 204}, Y: -1},
}

// ParseStatus maps a status label to its Status. Labels outside the four
// known values return ErrUnknownStatus.
func ParseStatus(label string) (Status, error) {
	s := Status(label)
	if _, ok := statusStyles[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, label)
	}
	return s, nil
}

// Style returns the display style of s. ok is false for an unknown status.
func (s Status) Style() (style Style, ok bool) {
	style, ok = statusStyles[s]
	return style, ok
}

// StyleForColor finds the style whose CSS color is css.
func StyleForColor(css string) (Style, bool) {
	for _, style := range statusStyles {
		if style.Color == css {
			return style, true
		}
	}
	return Style{}, false
}

// Passed reports whether the status counts as a passing build.
func (s Status) Passed() bool {
	return s == StatusPass || s == StatusFixed
}
