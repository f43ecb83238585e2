package internal

import (
	"github.com/sweetbite/mealqa/internal/config"
)

// LoadConfig reads the config file from an explicit path, or from the
// default location when path is empty.
func LoadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}
