package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
)

// File is the optional TOML configuration file. Values in it are used only for flags
// that were not given on the command line or through the environment.
type File struct {
	Cache    FileCache    `toml:"cache"`
	Firebase FileFirebase `toml:"firebase"`
}

// FileCache is the [cache] table
type FileCache struct {
	RootDir      string `toml:"root_dir"`
	IndexDir     string `toml:"index_dir"`
	IndexKey     string `toml:"index_key"`
	MaxParallel  *int   `toml:"max_parallel"`
	FetchTimeout string `toml:"fetch_timeout"`
	FetchRetries *int   `toml:"fetch_retries"`
}

// FileFirebase is the [firebase] table
type FileFirebase struct {
	ProjectID       string `toml:"project_id"`
	DatabaseID      string `toml:"database_id"`
	Collection      string `toml:"collection"`
	CredentialsFile string `toml:"credentials_file"`
}

// LoadFile reads a TOML configuration file. Unknown keys are rejected so typos do not
// go unnoticed.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open config file", goerr.V("path", path))
	}
	defer f.Close()

	var file File
	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}
	return &file, nil
}

// IsSet reports whether a flag was given explicitly
type IsSet func(name string) bool

func setString(dst *string, v string, flag string, isSet IsSet) {
	if v != "" && !isSet(flag) {
		*dst = v
	}
}

func setInt(dst *int, v *int, flag string, isSet IsSet) {
	if v != nil && !isSet(flag) {
		*dst = *v
	}
}
