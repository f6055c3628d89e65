package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const backupPrefix = "model_backup_"

// Save writes the snapshot with write-then-swap: the bytes land in a
// temp file first and replace path in a single rename, so readers see
// either the old artifact or the new one, never a partial write.
func Save(path string, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return writeAtomic(path, data)
}

func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if snap.Header.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("snapshot format version %d not supported (want %d)", snap.Header.FormatVersion, FormatVersion)
	}
	return &snap, nil
}

func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Backup copies the active snapshot into dir under
// model_backup_<UTC timestamp>.json. Backups are append-only: the file
// is written once and never touched again. Sub-second precision in the
// name keeps concurrent-looking cycles from colliding.
func Backup(path, dir string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read active snapshot: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	name := backupPrefix + time.Now().UTC().Format("20060102_150405.000000000") + ".json"
	backupPath := filepath.Join(dir, name)
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return backupPath, nil
}

// Restore puts the bytes of a backup back as the active snapshot,
// atomically. The restored file is byte-identical to the backup.
func Restore(backupPath, activePath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	return writeAtomic(activePath, data)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("swap snapshot into place: %w", err)
	}
	return nil
}
