package payload

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// LoadFile reads samples from a file and bloats them to size.
//
// Files ending in .json are parsed as JSON and samples are selected with
// path, which may be given in gjson or JSONPath syntax. An empty path
// selects the whole document, which must then be an array. Any other file is
// read as text with one sample per non-empty line.
func LoadFile(file, path string, size int) ([][]byte, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples file: %w", err)
	}

	var samples []string
	if strings.EqualFold(filepath.Ext(file), ".json") {
		samples, err = ParseJSON(data, path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	} else {
		samples = ParseText(data)
	}

	pool, err := FromStrings(samples, size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return pool, nil
}

// ParseText splits data into lines, dropping empty ones and trailing
// carriage returns.
func ParseText(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ParseJSON selects samples from a JSON document. An array result yields
// one sample per element; any other result yields a single sample. String
// values are used verbatim, everything else as raw JSON.
func ParseJSON(data []byte, path string) ([]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}

	result := gjson.ParseBytes(data)
	if path != "" {
		result = result.Get(toGjsonPath(path))
		if !result.Exists() {
			return nil, fmt.Errorf("path not found: %s", path)
		}
	}

	var out []string
	if result.IsArray() {
		for _, v := range result.Array() {
			out = append(out, sampleText(v))
		}
	} else {
		out = append(out, sampleText(result))
	}
	return out, nil
}

func sampleText(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.Str
	}
	if v.Type == gjson.Null {
		return ""
	}
	return v.Raw
}

// toGjsonPath converts a JSONPath expression to gjson syntax. Paths already
// in gjson syntax pass through unchanged.
//
//	$.messages[*].text -> messages.#.text
//	$['messages'][0]   -> messages.0
func toGjsonPath(path string) string {
	if path == "$" {
		return "@this"
	}

	path = strings.TrimPrefix(path, "$")
	if path == "" {
		return "@this"
	}
	path = strings.TrimPrefix(path, ".")

	path = strings.NewReplacer(
		"['", ".", "']", "",
		`["`, ".", `"]`, "",
		"[*]", ".#",
		"[", ".", "]", "",
	).Replace(path)
	path = strings.TrimPrefix(path, ".")

	// A trailing wildcard selects the array itself.
	path = strings.TrimSuffix(path, ".#")
	if path == "#" || path == "" {
		return "@this"
	}
	return path
}
