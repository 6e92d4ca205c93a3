package migrate

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
)

var migrationName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

var requiredAnnotations = [][]byte{
	[]byte("-- +goose Up"),
	[]byte("-- +goose Down"),
}

// ValidateDir checks the .sql files in dir on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateEmbedded checks the migrations compiled into the binary.
func ValidateEmbedded() error {
	return ValidateFS(embeddedMigrations, embeddedDir)
}

// ValidateFS enforces YYYYMMDDHHMMSS_slug.sql names, unique versions and
// both goose annotations. Non-SQL files are ignored.
func ValidateFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	versions := make(map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		match := migrationName.FindStringSubmatch(name)
		if match == nil {
			return fmt.Errorf("migration %q: name must be YYYYMMDDHHMMSS_slug.sql", name)
		}
		if other, dup := versions[match[1]]; dup {
			return fmt.Errorf("migrations %q and %q share version %s", other, name, match[1])
		}
		versions[match[1]] = name

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		for _, want := range requiredAnnotations {
			if !bytes.Contains(body, want) {
				return fmt.Errorf("migration %q lacks %q", name, want)
			}
		}
	}
	return nil
}
