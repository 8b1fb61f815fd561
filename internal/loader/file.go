package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

func loadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkExt(name); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Clean(name))
}

func loadFromFS(ctx context.Context, files fs.FS, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if files == nil {
		return nil, errors.New("no file system configured")
	}
	if err := checkExt(name); err != nil {
		return nil, err
	}
	return fs.ReadFile(files, path.Clean(name))
}

// checkExt accepts the extensions schema documents are stored with.
func checkExt(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("path is required")
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return nil
	default:
		return fmt.Errorf("unsupported schema file extension %q", filepath.Ext(name))
	}
}
