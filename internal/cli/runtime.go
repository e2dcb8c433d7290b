package cli

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/karki-p/userd/internal/config"
)

// loadConfigFn is swappable in tests.
var loadConfigFn = config.Load

func loadConfig(deps commandDeps) (config.Config, error) {
	opts := config.LoadOptions{}
	if deps.globals != nil {
		if configPath := strings.TrimSpace(deps.globals.ConfigPath); configPath != "" {
			opts.ConfigPath = configPath
		}
		if dbPath := strings.TrimSpace(deps.globals.DBPath); dbPath != "" {
			opts.Flags.DBPath = &dbPath
		}
	}
	return loadConfigFn(opts)
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
