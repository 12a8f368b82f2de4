// Package envfile loads flat KEY=value environment files and merges them into
// the process environment.
package envfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/subosito/gotenv"
)

// Mask replaces the value of secret-like variables in any logged output.
const Mask = "********"

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var secretMarkers = []string{"ACCESS_KEY", "SECRET", "TOKEN", "PASSWORD", "PASSPHRASE"}

// Logger receives loader diagnostics.
type Logger interface {
	Info(format string, args ...any)
	Warning(format string, args ...any)
}

// Vars is a name to value mapping.
type Vars map[string]string

// Keys returns the variable names in sorted order.
func (v Vars) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Redacted returns a copy with secret values masked.
func (v Vars) Redacted() Vars {
	out := make(Vars, len(v))
	for k, val := range v {
		out[k] = Redact(k, val)
	}

	return out
}

// IsSecret reports whether key looks like it holds a credential.
func IsSecret(key string) bool {
	upper := strings.ToUpper(key)
	for _, m := range secretMarkers {
		if strings.Contains(upper, m) {
			return true
		}
	}

	return false
}

// Redact returns value, or Mask when key is secret-like.
func Redact(key, value string) string {
	if IsSecret(key) {
		return Mask
	}

	return value
}

// Parse reads KEY=value lines from r. Each line is decoded by gotenv, so
// quotes and inline comments follow its rules; a '#' outside quotes starts a
// comment. Values are literal: '$' is never expanded. Lines that are not
// KEY=value with a shell-style key are skipped.
func Parse(r io.Reader) (Vars, error) {
	vars := Vars{}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		key, value, ok := parseLine(scanner.Text())
		if ok {
			vars[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	return vars, nil
}

func parseLine(raw string) (string, string, bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

	idx := strings.Index(line, "=")
	if idx <= 0 {
		return "", "", false
	}

	key := strings.TrimSpace(line[:idx])
	if !keyPattern.MatchString(key) {
		return "", "", false
	}

	// gotenv expands $VAR except inside single quotes.
	value := strings.TrimSpace(line[idx+1:])
	if !strings.HasPrefix(value, "'") {
		value = strings.ReplaceAll(value, "$", `\$`)
	}

	env, err := gotenv.Unmarshal(key + "=" + value)
	if err != nil {
		return "", "", false
	}
	v, ok := env[key]

	return key, v, ok
}

// Load parses the file at path. A missing or unreadable file yields an empty
// mapping and a warning, never an error.
func Load(path string, log Logger) Vars {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warning("Environment file %s not found, using process environment only", path)
		} else {
			log.Warning("Cannot open environment file %s: %v", path, err)
		}
		return Vars{}
	}
	defer f.Close()

	vars, err := Parse(f)
	if err != nil {
		log.Warning("Cannot parse environment file %s: %v", path, err)
		return Vars{}
	}

	log.Info("Loaded %d variables from %s", len(vars), path)
	for _, k := range vars.Keys() {
		log.Info("  %s=%s", k, Redact(k, vars[k]))
	}

	return vars
}
