package store

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/msageha/deckplan/internal/lock"
)

var keyRegex = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// FileKV stores one file per key under dir. Writes are atomic: content
// goes to a temp file, is verified by re-reading, the previous payload
// is kept as <key>.bak, and the temp file is renamed into place.
type FileKV struct {
	dir    string
	keys   *lock.MutexMap
	logger *log.Logger
}

func NewFileKV(dir string, logger *log.Logger) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &FileKV{
		dir:    dir,
		keys:   lock.NewMutexMap(),
		logger: logger,
	}, nil
}

func (s *FileKV) path(key string) string {
	return filepath.Join(s.dir, key)
}

func validateKey(key string) error {
	if !keyRegex.MatchString(key) {
		return fmt.Errorf("invalid store key %q", key)
	}
	return nil
}

func (s *FileKV) Get(key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	s.keys.Lock(key)
	defer s.keys.Unlock(key)

	content, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return content, true, nil
}

func (s *FileKV) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.keys.Lock(key)
	defer s.keys.Unlock(key)

	return s.atomicWrite(s.path(key), value)
}

func (s *FileKV) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.keys.Lock(key)
	defer s.keys.Unlock(key)

	path := s.path(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	// Stale backups must not resurrect a cleared session.
	if err := os.Remove(path + ".bak"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s.bak: %w", key, err)
	}
	return nil
}

// Recover quarantines the current payload for key and restores the
// last backup if one exists. Returns the restored payload.
func (s *FileKV) Recover(key string) ([]byte, bool) {
	if err := validateKey(key); err != nil {
		return nil, false
	}
	s.keys.Lock(key)
	defer s.keys.Unlock(key)

	path := s.path(key)
	if err := s.quarantine(path); err != nil {
		s.logger.Printf("quarantine failed for %s: %v", key, err)
		return nil, false
	}

	bakPath := path + ".bak"
	content, err := os.ReadFile(bakPath)
	if err != nil {
		s.logger.Printf("no usable backup for %s: %v", key, err)
		return nil, false
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		s.logger.Printf("restore from backup failed for %s: %v", key, err)
		return nil, false
	}
	s.logger.Printf("restored from backup: %s", key)
	return content, true
}

func (s *FileKV) atomicWrite(path string, content []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".deckplan-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		// Clean up temp file on any failure
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	written, err := os.ReadFile(tmpName)
	if err != nil {
		return fmt.Errorf("read temp file for verification: %w", err)
	}
	if !bytes.Equal(written, content) {
		return fmt.Errorf("temp file verification failed: content mismatch")
	}

	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak"); err != nil {
			return fmt.Errorf("create backup: %w", err)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}

	return nil
}

func (s *FileKV) quarantine(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	quarantineDir := filepath.Join(s.dir, "quarantine")
	if err := os.MkdirAll(quarantineDir, 0755); err != nil {
		return fmt.Errorf("create quarantine dir: %w", err)
	}

	baseName := filepath.Base(path)
	timestamp := time.Now().Format("20060102T150405")
	quarantinePath := filepath.Join(quarantineDir, fmt.Sprintf("%s.%s.corrupt", baseName, timestamp))

	if err := os.Rename(path, quarantinePath); err != nil {
		return fmt.Errorf("move to quarantine: %w", err)
	}

	s.logger.Printf("quarantined corrupted payload: %s → %s", path, quarantinePath)
	return nil
}

func copyFile(src, dst string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, content, 0644)
}
