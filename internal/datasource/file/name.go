package file

import (
	"path/filepath"
	"regexp"
	"time"
)

// nameCleaner collapses runs of characters that are unsafe in file names.
var nameCleaner = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Tagger names extraction output files <topic>_<yyyyMMdd>_<HHmmss><ext>.
type Tagger struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// Ext defaults to ".csv".
	Ext string
}

// Name returns the output file name for topic, using local 24-hour time.
func (t Tagger) Name(topic string) string {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	ext := t.Ext
	if ext == "" {
		ext = ".csv"
	}
	return SafeName(topic) + "_" + now().Format("20060102_150405") + ext
}

// Path joins dir and Name(topic).
func (t Tagger) Path(dir, topic string) string {
	return filepath.Join(dir, t.Name(topic))
}

// SafeName replaces unsafe runs with "_". An empty result becomes "topic".
func SafeName(s string) string {
	clean := nameCleaner.ReplaceAllString(s, "_")
	if clean == "" || clean == "." || clean == ".." {
		return "topic"
	}
	return clean
}
