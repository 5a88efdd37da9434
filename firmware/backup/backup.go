// Package backup snapshots the installed managed-firmware list before the
// pipeline mutates anything. The file is recovery data for the operator;
// nothing in this tool reads it back.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const timestampFormat = "20060102-150405"

// Write persists the ordered installed list to a timestamped file under
// dir and returns the file's path.
func Write(dir, hostname string, installed []string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create backup directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("firmware-packages-%s.list", now.Format(timestampFormat)))

	var b strings.Builder
	b.WriteString("# pg-manage-firmware backup\n")
	fmt.Fprintf(&b, "# Date: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "# Host: %s\n", hostname)
	b.WriteString("# Restore with: pkg install -y $(grep -v '^#' <this file>)\n")
	for _, pkg := range installed {
		b.WriteString(pkg)
		b.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("cannot write backup file %s: %w", path, err)
	}

	return path, nil
}
