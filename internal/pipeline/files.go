package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// copyFile copies src to dst byte for byte.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}

// backupCopy snapshots the input next to itself before any mutation.
// The uuid suffix keeps concurrent runs on the same input from
// clobbering each other's backups.
func backupCopy(src string) (string, error) {
	dst := fmt.Sprintf("%s.bak-%s", src, uuid.NewString()[:8])
	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// scratchPath returns a per-run unique file path in the system temp
// directory.
func scratchPath(suffix string) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("inkfill-%s%s", uuid.NewString(), suffix))
}
