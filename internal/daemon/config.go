package daemon

import (
	"fmt"
	"os"

	"github.com/telesto-labs/chime/internal/model"
	"github.com/telesto-labs/chime/internal/yamlio"
)

// ConfigFileName is the per-directory configuration file.
const ConfigFileName = "chime.yaml"

// LoadConfig reads chimeDir/chime.yaml. A missing file yields the defaults,
// and any file that does exist is merged over them.
func LoadConfig(path string) (model.Config, error) {
	cfg := model.DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if err := yamlio.Read(path, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}
