package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// DefaultEnvFiles are loaded by the mains in order; earlier files win
var DefaultEnvFiles = []string{".env.local", ".env"}

// LoadDotenv loads env files into the process environment without overriding
// variables that are already set. Missing files are ignored
func LoadDotenv(files ...string) ([]string, error) {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}
	var loaded []string
	for _, f := range files {
		err := godotenv.Load(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return loaded, err
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}
