// Package configabs resolves relative file paths in the filescan config.
//
// Providers that read local files, such as the digest blocklist or the
// name pattern rules, need absolute paths since filescan may be started from
// any directory. Write {$abs: "rules/blocklist.txt"} in the config and it is
// replaced with the path joined onto the working directory.
package configabs

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/demiflat/orbeon-forms/config"
)

type provider struct{}

func init() {
	config.Register("abs", provider{})
}

func (provider) Transform(cfg map[string]interface{}) error {
	return config.ReplaceObjects(cfg, "abs", func(val map[string]interface{}) (interface{}, error) {
		p, ok := val["$abs"].(string)
		if !ok || strings.TrimSpace(p) == "" {
			return nil, errors.Errorf("$abs must be a non-empty path, got: %v", val["$abs"])
		}
		result, err := filepath.Abs(filepath.FromSlash(p))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to resolve absolute path for: %s", p)
		}
		return result, nil
	})
}
