package content

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/creativeprojects/mailstrip/lib"
)

// Store manages a local directory of extracted attachment files.
//
// A file is never overwritten with different content: when a name is
// already taken, identical bytes reuse the existing file and different
// bytes get a numbered suffix. The resolution is deterministic, so
// running again with the same bytes converges to the same path.
type Store struct {
	dir string
	log lib.Logger
}

func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

func NewStoreWithLogger(dir string, logger lib.Logger) (*Store, error) {
	if logger == nil {
		logger = &lib.NoLog{}
	}
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return nil, fmt.Errorf("cannot create target directory %q: %w", dir, err)
	}
	return &Store{
		dir: dir,
		log: logger,
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes data under filename and returns the final path after
// collision resolution. The file modification time is set to modTime
// (the internal date of the message the attachment came from).
func (s *Store) Save(filename string, data []byte, modTime time.Time) (string, error) {
	filename = filepath.Base(lib.SlugifyFilename(filename))
	key := lib.ContentKey(data)

	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	extension := filepath.Ext(filename)

	for iterator := 0; ; iterator++ {
		name := base + extension
		if iterator > 0 {
			name = base + "-" + strconv.Itoa(iterator) + extension
		}
		target := filepath.Join(s.dir, name)

		existing, err := os.ReadFile(target)
		if os.IsNotExist(err) {
			err = s.write(target, data, modTime)
			if err != nil {
				return "", err
			}
			s.log.Printf("saved %q (%d bytes)", target, len(data))
			return target, nil
		}
		if err != nil {
			return "", fmt.Errorf("cannot read existing file %q: %w", target, err)
		}
		if bytes.Equal(key, lib.ContentKey(existing)) {
			// same content already stored under this name
			s.log.Printf("%q already exists with the same content", target)
			return target, nil
		}
		// same name, different content: try the next suffix
	}
}

// Exists indicates whether a file with this exact content is already
// stored under this name (or one of its collision-resolved names).
func (s *Store) Exists(filename string, key []byte) bool {
	filename = filepath.Base(lib.SlugifyFilename(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	extension := filepath.Ext(filename)

	for iterator := 0; ; iterator++ {
		name := base + extension
		if iterator > 0 {
			name = base + "-" + strconv.Itoa(iterator) + extension
		}
		existing, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return false
		}
		if bytes.Equal(key, lib.ContentKey(existing)) {
			return true
		}
	}
}

// List returns the names of the stored files, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) write(target string, data []byte, modTime time.Time) error {
	err := os.WriteFile(target, data, 0600)
	if err != nil {
		return fmt.Errorf("cannot write %q: %w", target, err)
	}
	if !modTime.IsZero() {
		_ = os.Chtimes(target, modTime, modTime)
	}
	return nil
}
