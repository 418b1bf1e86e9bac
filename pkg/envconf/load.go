// Package envconf fills configuration structs from the process environment.
package envconf

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var ErrInvalidDestination = errors.New("destination must be a non-nil pointer to a struct")

// Load reads optional dotenv files (missing files are ignored) and then parses
// `env` tags on dst. Variables already present in the environment win over
// dotenv values.
func Load(dst any, dotenvFiles ...string) error {
	v := reflect.ValueOf(dst)
	if dst == nil || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrInvalidDestination
	}

	for _, f := range dotenvFiles {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load dotenv %q: %w", f, err)
		}
	}

	err := env.Parse(dst)
	if err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	return nil
}
