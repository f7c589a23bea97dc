package export

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Write writes bundle artifacts to dir.
func Write(dir string, b *Bundle) error {
	m := b.Manifest
	if m.CurveCols <= 0 {
		return fmt.Errorf("invalid curve column count: %d", m.CurveCols)
	}
	if len(b.Curves) != m.CurveRows*m.CurveCols {
		return fmt.Errorf("curve length mismatch: got %d want %d", len(b.Curves), m.CurveRows*m.CurveCols)
	}
	if m.CurvesFile == "" {
		m.CurvesFile = curvesFile
	}
	if m.AssignmentsFile == "" {
		m.AssignmentsFile = assignmentsFile
	}
	if m.CreatedAt == "" {
		m.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if m.BundleVersion == 0 {
		m.BundleVersion = BundleVersion
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create export dir %s: %w", dir, err)
	}

	mb, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), mb, 0o644); err != nil {
		return fmt.Errorf("cannot write manifest: %w", err)
	}

	af, err := os.Create(filepath.Join(dir, m.AssignmentsFile))
	if err != nil {
		return fmt.Errorf("cannot create assignments file: %w", err)
	}
	bw := bufio.NewWriter(af)
	enc := json.NewEncoder(bw)
	for _, r := range b.Assignments {
		if err := enc.Encode(r); err != nil {
			_ = af.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = af.Close()
		return err
	}
	if err := af.Close(); err != nil {
		return err
	}

	cf, err := os.Create(filepath.Join(dir, m.CurvesFile))
	if err != nil {
		return fmt.Errorf("cannot create curves file: %w", err)
	}
	if err := binary.Write(cf, binary.LittleEndian, b.Curves); err != nil {
		_ = cf.Close()
		return fmt.Errorf("cannot write curves: %w", err)
	}
	return cf.Close()
}

// AtomicSwap replaces destDir with srcDir by renaming.
func AtomicSwap(srcDir, destDir string) error {
	parent := filepath.Dir(destDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	backup := destDir + ".bak"
	_ = os.RemoveAll(backup)
	if _, err := os.Stat(destDir); err == nil {
		if err := os.Rename(destDir, backup); err != nil {
			return err
		}
	}
	if err := os.Rename(srcDir, destDir); err != nil {
		// rollback best-effort
		if _, stErr := os.Stat(backup); stErr == nil {
			_ = os.Rename(backup, destDir)
		}
		return err
	}
	_ = os.RemoveAll(backup)
	return nil
}
