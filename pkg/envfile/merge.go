package envfile

import (
	"fmt"
	"os"
	"strings"
)

// Precedence decides who wins when a variable is set both in the process
// environment and in the file.
type Precedence int

const (
	// PreferProcess keeps already-set process variables.
	PreferProcess Precedence = iota
	// PreferFile overwrites process variables with file values.
	PreferFile
)

func (p Precedence) String() string {
	if p == PreferFile {
		return "file"
	}
	return "process"
}

// Environment abstracts the process environment.
type Environment interface {
	LookupEnv(key string) (string, bool)
	Setenv(key, value string) error
	Environ() []string
}

// OSEnvironment is the real process environment.
type OSEnvironment struct{}

func (OSEnvironment) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }
func (OSEnvironment) Setenv(key, value string) error      { return os.Setenv(key, value) }
func (OSEnvironment) Environ() []string                   { return os.Environ() }

// MapEnvironment is an in-memory Environment.
type MapEnvironment map[string]string

func (m MapEnvironment) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapEnvironment) Setenv(key, value string) error {
	m[key] = value
	return nil
}

func (m MapEnvironment) Environ() []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}

// Merge writes file values into env according to p and returns the effective
// variables: every process variable plus the file keys.
func Merge(file Vars, env Environment, p Precedence) (Vars, error) {
	for _, k := range file.Keys() {
		if _, set := env.LookupEnv(k); set && p == PreferProcess {
			continue
		}
		if err := env.Setenv(k, file[k]); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", k, err)
		}
	}

	effective := Vars{}
	for _, kv := range env.Environ() {
		if idx := strings.Index(kv, "="); idx > 0 {
			effective[kv[:idx]] = kv[idx+1:]
		}
	}

	return effective, nil
}
