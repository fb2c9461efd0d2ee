package cfg

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFolder    = "INBOX"
	DefaultTargetDir = "attachments"
)

type Config struct {
	// CacheDir is where the processed caches are kept, defaults to the
	// user cache directory
	CacheDir string             `yaml:"cacheDir"`
	Accounts map[string]Account `yaml:"accounts"`
}

type Account struct {
	ServerURL string `yaml:"serverURL"`
	Username  string `yaml:"username"`
	// Password can be left empty and provided through the
	// MAILSTRIP_PASSWORD environment variable (or a .env file)
	Password            string   `yaml:"password"`
	SkipTLSVerification bool     `yaml:"skipTLSVerification"`
	Folders             []string `yaml:"folders"`
	// TargetDir is where the attachments are saved
	TargetDir string `yaml:"targetDir"`
}

func newConfig() *Config {
	return &Config{}
}

// LoadFromFile loads the configuration from the file
func LoadFromFile(fileName string) (*Config, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	return loadConfig(file)
}

// loadConfig from a io.ReadCloser
func loadConfig(reader io.ReadCloser) (*Config, error) {
	defer reader.Close()
	decoder := yaml.NewDecoder(reader)
	config := newConfig()
	err := decoder.Decode(config)
	if err != nil {
		return nil, err
	}
	err = validateConfiguration(config)
	if err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfiguration(config *Config) error {
	for name, account := range config.Accounts {
		if account.ServerURL == "" {
			return fmt.Errorf("account %q: missing serverURL", name)
		}
		if account.Username == "" {
			return fmt.Errorf("account %q: missing username", name)
		}
		if len(account.Folders) == 0 {
			account.Folders = []string{DefaultFolder}
		}
		if account.TargetDir == "" {
			account.TargetDir = DefaultTargetDir
		}
		config.Accounts[name] = account
	}
	return nil
}
