// Package input expands command arguments that use - (stdin) or @file
// syntax into literal values.
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/marcus/feedsync/internal/output"
)

// ExpandIDs expands - and @file arguments into one id per non-empty line.
// Stdin is read at most once; unreadable files are skipped with a warning.
func ExpandIDs(args []string, stdin io.Reader) []string {
	var result []string
	stdinUsed := false
	for _, v := range args {
		switch {
		case v == "-":
			if stdinUsed {
				output.Warning("stdin already used, ignoring additional -")
				continue
			}
			stdinUsed = true
			result = append(result, ReadLines(stdin)...)
		case strings.HasPrefix(v, "@"):
			path := strings.TrimPrefix(v, "@")
			file, err := os.Open(path)
			if err != nil {
				output.Warning("failed to read %s: %v", path, err)
				continue
			}
			result = append(result, ReadLines(file)...)
			file.Close()
		default:
			result = append(result, v)
		}
	}
	return result
}

// ReadText returns arg, or the whole of stdin for "-", or a file's contents
// for "@path". Surrounding whitespace is trimmed.
func ReadText(arg string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	switch {
	case arg == "-":
		data, err = io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		data, err = os.ReadFile(strings.TrimPrefix(arg, "@"))
	default:
		return strings.TrimSpace(arg), nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", arg, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ReadLines reads non-empty lines from a reader.
func ReadLines(r io.Reader) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
