package config

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jtarrant/dirsnap/internal/errors"
	"github.com/jtarrant/dirsnap/internal/rules"
	"github.com/jtarrant/dirsnap/pkg/fileutil"
)

// AppName is the application name used for config file placement.
const AppName = "dirsnap"

// EnvRulesFile overrides the default rules file location when set.
const EnvRulesFile = "DIRSNAP_RULES"

// DefaultSection is the section applied when the user does not choose one.
const DefaultSection = "default"

// Section is the raw shape of one rules section before compilation.
type Section struct {
	SkipFoldersAndFiles []string `mapstructure:"skip_folders_and_files" yaml:"skip_folders_and_files"`
	SkipFileExtensions  []string `mapstructure:"skip_file_extensions" yaml:"skip_file_extensions"`
}

// DefaultPath returns the rules file location: the DIRSNAP_RULES environment
// variable when set, otherwise $XDG_CONFIG_HOME/dirsnap/rules.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvRulesFile); p != "" {
		return p
	}
	return filepath.Join(xdg.ConfigHome, AppName, "rules.yaml")
}

func read(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading rules file %s", path)
	}
	return v, nil
}

// Load reads the rules file at path and compiles the named section.
// The section must exist; there is no implicit fallback.
func Load(path, section string) (*rules.Set, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}

	if !v.IsSet(section) {
		return nil, errors.Wrapf(errors.ErrSectionNotFound, "%q in %s", section, path)
	}

	var sec Section
	if err := v.UnmarshalKey(section, &sec); err != nil {
		return nil, errors.Wrapf(err, "decoding section %q", section)
	}

	return rules.Compile(section, sec.SkipFoldersAndFiles, sec.SkipFileExtensions)
}

// Sections returns the section names defined in the rules file, sorted.
func Sections(path string) ([]string, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}

	settings := v.AllSettings()
	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// seedSections is the starter rule set written by `dirsnap init`.
// Sections mirror common project types.
var seedSections = map[string]Section{
	"default": {
		SkipFoldersAndFiles: []string{".git", ".DS_Store", "temp-*"},
		SkipFileExtensions:  []string{"tmp", "swp", "bak"},
	},
	"python": {
		SkipFoldersAndFiles: []string{".git", ".venv", "venv", "__pycache__", ".mypy_cache", ".pytest_cache"},
		SkipFileExtensions:  []string{"pyc", "pyo"},
	},
	"rust": {
		SkipFoldersAndFiles: []string{".git", "target"},
		SkipFileExtensions:  []string{"rlib"},
	},
	"node": {
		SkipFoldersAndFiles: []string{".git", "node_modules", "dist", ".next"},
		SkipFileExtensions:  []string{"log"},
	},
}

// WriteDefault writes the starter rules file to path, creating parent
// directories as needed. It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf("rules file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	if err := fileutil.AtomicWriteYAML(path, seedSections); err != nil {
		return errors.Wrap(err, "writing rules file")
	}

	return nil
}
