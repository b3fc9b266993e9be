package configparser

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/kelseyhightower/envconfig"
)

// LoadAndParseYaml exports the YAML file into the environment and fills cfg from it.
// Variables already present in the environment win over the file. A missing file is
// not an error, cfg is then built from the environment and defaults only.
func LoadAndParseYaml(filepath string, cfg any) error {
	if err := LoadYamlFile(filepath); err != nil && !errors.Is(err, ErrNoFilePath) && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}
