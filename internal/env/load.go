package env

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Load reads KEY=value pairs from the given files (default ./.env) into the
// process environment. Variables already set are kept, so real env wins.
func Load(files ...string) error {
	err := godotenv.Load(files...)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Msg("no .env file found")
		return nil
	}
	return err
}
