package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptyStrip is returned when there is nothing to write.
var ErrEmptyStrip = errors.New("archive: empty strip")

// Dir writes strips into a directory on the kiosk.
type Dir struct {
	Path string
}

// Save writes data as name inside the directory and returns the full path.
// name is reduced to its base so it cannot escape the directory.
func (d Dir) Save(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyStrip
	}
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("archive: invalid file name %q", name)
	}

	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return "", fmt.Errorf("archive: create save directory: %w", err)
	}
	path := filepath.Join(d.Path, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("archive: write %s: %w", name, err)
	}
	return path, nil
}
