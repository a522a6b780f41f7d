package file

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// topicName matches the characters a broker accepts in a topic name.
var topicName = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ReadTopicList reads one topic per line. Blank lines and lines starting with
// '#' are skipped, repeated topics are kept once and order is preserved. An
// invalid topic name fails with its line number.
func ReadTopicList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("topic list: %w", err)
	}
	defer f.Close()

	var out []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !topicName.MatchString(line) {
			return nil, fmt.Errorf("topic list %s:%d: invalid topic name %q", path, n, line)
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("topic list %s: %w", path, err)
	}
	return out, nil
}
