package cryptox

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const pepperLength = 32

// LoadOrCreatePepper reads the server pepper from path. When the file does not
// exist a new random pepper is generated and written with 0600 permissions.
func LoadOrCreatePepper(path string) (string, error) {
	if path == "" {
		return "", errors.New("cryptox: pepper path is empty")
	}
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		pepper := strings.TrimSpace(string(data))
		if pepper == "" {
			return "", fmt.Errorf("cryptox: pepper file %s is empty", path)
		}
		return pepper, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("cryptox: read pepper: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("cryptox: create pepper dir: %w", err)
	}

	raw, err := RandomBytes(pepperLength)
	if err != nil {
		return "", err
	}
	pepper := base64.RawURLEncoding.EncodeToString(raw)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".pepper-*")
	if err != nil {
		return "", fmt.Errorf("cryptox: create pepper file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return "", fmt.Errorf("cryptox: chmod pepper: %w", err)
	}
	if _, err := tmp.WriteString(pepper); err != nil {
		tmp.Close()
		return "", fmt.Errorf("cryptox: write pepper: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("cryptox: write pepper: %w", err)
	}

	// Link fails if path exists, so processes racing on first start agree on one pepper.
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return LoadOrCreatePepper(path)
		}
		return "", fmt.Errorf("cryptox: install pepper: %w", err)
	}
	return pepper, nil
}
