package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const configHeader = `# umsd configuration file
#
# Every value can be overridden with an environment variable using the
# UMSD_ prefix and underscores, e.g. UMSD_SERVICE_QUEUE_DEPTH=64.
#
# Storage units (at most two) support the backends: memory, file, s3, badger.
#
#   storage:
#     units:
#       - type: file
#         file:
#           path: /var/lib/umsd/unit0.img
#       - type: s3
#         sector_count: 2097152
#         s3:
#           bucket: umsd-images
#           key_prefix: units/1/

`

// InitConfig writes the default configuration to the default location and
// returns its path. An existing file is kept unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes the default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return writeConfigFile(path, append([]byte(configHeader), data...))
}
