package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// stdinItemsFile is the --items-file value that reads from standard input.
const stdinItemsFile = "-"

// readItems reads one item per line from path, or from stdin when path is "-".
// Blank lines are skipped and trailing carriage returns are trimmed.
func readItems(path string, stdin io.Reader) ([]string, error) {
	var r io.Reader
	if path == stdinItemsFile {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening items file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var items []string
	scanner := bufio.NewScanner(r)
	// Paths can be long; allow lines well beyond the default 64KiB token limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		items = append(items, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading items from %s: %w", path, err)
	}
	return items, nil
}
