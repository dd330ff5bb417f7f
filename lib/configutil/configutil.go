package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// LocalName returns the override file that sits next to `name`,
// `config.json5` becomes `config.local.json5`.
func LocalName(name string) string {
	prefixname, ext := splitExt(filepath.Base(name))
	if ext == "" {
		return filepath.Join(filepath.Dir(name), fmt.Sprintf("%s.local", prefixname))
	}
	return filepath.Join(
		filepath.Dir(name),
		fmt.Sprintf("%s.local.%s", prefixname, ext),
	)
}

// MergeInto reads a json5 configuration file and merges every non-zero field of it over `dst`.
// The files are applied in the following order, where higher number is more prioritized.
// 0. whatever `dst` already holds (usually defaults)
// 1. <name>.<ext>
// 2. <name>.local.<ext>
//
// Missing files are skipped, the returned slice lists the files that were applied.
func MergeInto[T any](dst *T, name string) ([]string, error) {
	var applied []string
	for _, path := range []string{name, LocalName(name)} {
		contents, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return applied, err
		}
		if len(contents) == 0 {
			continue
		}

		var override T
		err = json5.Unmarshal(contents, &override)
		if err != nil {
			return applied, fmt.Errorf("parse %s: %w", path, err)
		}
		err = mergo.Merge(dst, override, mergo.WithOverride)
		if err != nil {
			return applied, fmt.Errorf("merge %s: %w", path, err)
		}
		slog.Debug("merged config file", "path", path)
		applied = append(applied, path)
	}
	return applied, nil
}

// ReadConfig reads a configuration file the same way MergeInto does, starting from the zero value.
// It returns os.ErrNotExist when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T
	applied, err := MergeInto(&out, name)
	if err != nil {
		return out, err
	}
	if len(applied) == 0 {
		return out, os.ErrNotExist
	}
	return out, nil
}
