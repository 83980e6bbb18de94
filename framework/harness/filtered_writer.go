package harness

import (
	"io"
	"regexp"
)

// BrowserNoise matches log lines that Chromium prints on every launch in a container and that
// never help to diagnose a test failure.
var BrowserNoise = []*regexp.Regexp{
	regexp.MustCompile(`DevTools listening on`),
	regexp.MustCompile(`Fontconfig (error|warning)`),
	regexp.MustCompile(`dbus/(bus|object_proxy)\.cc`),
	regexp.MustCompile(`gpu_(init|process_host)\.cc`),
}

type filteredWriter struct {
	writer       io.Writer
	excludeRegex []*regexp.Regexp
}

// NewFilteredWriter returns a Writer that drops every write matching one of the patterns and
// passes everything else through. It is meant for line-oriented process output, where each
// write is one line.
func NewFilteredWriter(writer io.Writer, excludeRegex []*regexp.Regexp) io.Writer {
	return &filteredWriter{writer, excludeRegex}
}

func (f *filteredWriter) Write(data []byte) (int, error) {
	for _, r := range f.excludeRegex {
		if r.Match(data) {
			return len(data), nil
		}
	}
	return f.writer.Write(data)
}
