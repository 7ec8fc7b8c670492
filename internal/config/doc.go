// Package config loads exclusion rule sets for dirsnap using Viper.
//
// A rules file is a mapping from section name to exclusion lists:
//
//	default:
//	  skip_folders_and_files: [".git", "temp-*"]
//	  skip_file_extensions: ["tmp", "swp"]
//	python:
//	  skip_folders_and_files: [".venv", "__pycache__"]
//	  skip_file_extensions: ["pyc"]
//
// YAML, JSON and TOML files are accepted; the format is inferred from the
// file extension. The requested section must exist: a missing section is an
// error, never a silent fallback to "default".
package config
