package config

import (
	"fmt"
)

func NewReadError(path string, err error) error {
	return fmt.Errorf("failed to read locations file %q: %w", path, err)
}

func NewParseError(path string, err error) error {
	return fmt.Errorf("failed to parse locations file %q: %w", path, err)
}
