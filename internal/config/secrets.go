package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// secretStore abstracts the secrets fallback for testing.
type secretStore interface {
	Get(service, account string) (string, error)
}

// secretsFile reads secrets from $XDG_DATA_HOME/lectern/secrets.json, shaped
// as {"service": {"account": "value"}}.
type secretsFile struct {
	path string
}

func defaultSecrets() secretsFile {
	return secretsFile{path: filepath.Join(defaultDataDir(), "secrets.json")}
}

func (s secretsFile) Get(service, account string) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("secrets file not available: %w", err)
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return "", fmt.Errorf("parsing secrets file: %w", err)
	}
	svc, ok := secrets[service]
	if !ok {
		return "", fmt.Errorf("service %q not found", service)
	}
	val, ok := svc[account]
	if !ok {
		return "", fmt.Errorf("account %q not found in service %q", account, service)
	}
	return strings.TrimSpace(val), nil
}

// Set writes a secret, creating the file with 0600 permissions.
func (s secretsFile) Set(service, account, value string) error {
	var secrets map[string]map[string]string

	if data, err := os.ReadFile(s.path); err == nil {
		_ = json.Unmarshal(data, &secrets)
	}
	if secrets == nil {
		secrets = make(map[string]map[string]string)
	}
	if secrets[service] == nil {
		secrets[service] = make(map[string]string)
	}
	secrets[service][account] = value

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0o600)
}
