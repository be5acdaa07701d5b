// Package comments builds the reader-comment widget embedded in HTML reports.
package comments

import (
	"fmt"
	"strings"
)

// pageMarker precedes the part of a report URL that identifies the page.
const pageMarker = "testReport/"

// Widget is the configuration of the embedded comment thread for one page.
type Widget struct {
	Shortname string
	PageURL   string
	Title     string
}

// NewWidget returns nil when no shortname is configured, which disables the widget.
func NewWidget(shortname, pageURL, title string) *Widget {
	if shortname == "" {
		return nil
	}
	return &Widget{Shortname: shortname, PageURL: pageURL, Title: title}
}

// ScriptURL is the loader script injected into the page.
func (w *Widget) ScriptURL() string {
	return fmt.Sprintf("https://%s.disqus.com/embed.js", w.Shortname)
}

// Identifier is the thread identifier for the widget's page.
func (w *Widget) Identifier() string {
	return PageIdentifier(w.PageURL)
}

// PageIdentifier returns the part of pageURL between the first "testReport/"
// marker and the next one, or the end of the URL. It is empty when the marker
// is absent.
func PageIdentifier(pageURL string) string {
	_, after, found := strings.Cut(pageURL, pageMarker)
	if !found {
		return ""
	}
	id, _, _ := strings.Cut(after, pageMarker)
	return id
}
