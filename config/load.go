package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/parsers/hcl"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "DVBTUNER_"

var SearchPaths = []string{"/etc/dvbtuner/config.hcl", "~/.config/dvbtuner/config.hcl", "./config.hcl"}

// FindConfigPath returns the last existing file of SearchPaths, or "" if
// none exists.
func FindConfigPath() string {
	found := ""
	for _, path := range SearchPaths {
		path = expandHome(path)
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			log.Debugf("Found config file: %s", path)
			found = path
		}
	}
	if found == "" {
		log.Info("Config file not found!")
	}
	return found
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Load reads the hcl file at path and falls back to DVBTUNER_ environment
// variables (DVBTUNER_SITE_TIMEOUT_MS sets site.timeout_ms) when the file
// cannot be read. Environment variables are also applied on top of a file
// that loaded fine.
func Load(path string) (*Conf, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), hcl.Parser(true)); err != nil {
			log.Errorf("Could not read config file: %v", err)
			log.Error("Attempting to use environment variables")
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(k, v string) (string, any) {
			key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
			key = strings.Replace(key, "_", ".", 1)
			log.Debugf("Found config env var: %s=%v", key, v)
			return key, v
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("could not read environment: %w", err)
	}

	var conf Conf
	if err := k.Unmarshal("", &conf); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	conf.ApplyDefaults()

	log.Debugf("Loaded config: %##v", conf)
	return &conf, nil
}
