package envstore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

const (
	KeyDeviceID               = "DEVICE_ID"
	KeyPrimaryKey             = "PRIMARY_KEY"
	KeySecondaryKey           = "SECONDARY_KEY"
	KeyDeviceConnectionString = "DEVICE_CONNECTION_STRING"
	KeyHubConnectionString    = "IOT_HUB_CONNECTION_STRING"

	DefaultPath = ".env"

	fileMode = 0600
)

// IdentityKeys are the keys that together make up a provisioned device identity.
var IdentityKeys = []string{
	KeyDeviceID,
	KeyPrimaryKey,
	KeySecondaryKey,
	KeyDeviceConnectionString,
}

var (
	ErrStore        = errors.New("config store error")
	ErrInvalidKey   = errors.New("invalid config key")
	ErrInvalidValue = errors.New("invalid config value")
)

type KeyValue struct {
	Key   string
	Value string
}

// Store is a line-oriented KEY="value" file. New keys are appended, existing
// keys are never overwritten. It is not locked against other processes.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// ReadAll parses the whole file. A missing file yields an empty map.
func (s *Store) ReadAll() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

func (s *Store) readAll() (map[string]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("Config store not found, treating as empty", "path", s.path)
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrStore, s.path, err)
	}
	defer f.Close()

	values, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrStore, s.path, err)
	}
	return values, nil
}

// HasCompleteIdentity reports whether every identity key is present.
func (s *Store) HasCompleteIdentity() (bool, error) {
	values, err := s.ReadAll()
	if err != nil {
		return false, err
	}
	for _, key := range IdentityKeys {
		if _, ok := values[key]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// SetIfAbsent appends key only if it is not already present. It reports
// whether the key was written.
func (s *Store) SetIfAbsent(key, value string) (bool, error) {
	written, err := s.SetAllIfAbsent(KeyValue{Key: key, Value: value})
	if err != nil {
		return false, err
	}
	return len(written) == 1, nil
}

// SetAllIfAbsent appends every absent key in a single write and returns the
// keys that were written. Present keys are skipped and keep their value.
func (s *Store) SetAllIfAbsent(pairs ...KeyValue) ([]string, error) {
	if err := Validate(pairs...); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readAll()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	var written []string
	for _, kv := range pairs {
		if _, ok := existing[kv.Key]; ok {
			slog.Info("Config key already set, skipping", "key", kv.Key, "path", s.path)
			continue
		}
		existing[kv.Key] = kv.Value
		fmt.Fprintf(&buf, "%s=\"%s\"\n", kv.Key, kv.Value)
		written = append(written, kv.Key)
	}
	if len(written) == 0 {
		return nil, nil
	}

	if err := s.appendLines(buf.Bytes()); err != nil {
		return nil, err
	}
	slog.Debug("Config store updated", "path", s.path, "keys", written)
	return written, nil
}

func (s *Store) appendLines(lines []byte) error {
	needsNewline, err := s.missingTrailingNewline()
	if err != nil {
		return err
	}
	if needsNewline {
		lines = append([]byte("\n"), lines...)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, fileMode)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s for append: %v", ErrStore, s.path, err)
	}
	if _, err := f.Write(lines); err != nil {
		f.Close()
		return fmt.Errorf("%w: failed to append to %s: %v", ErrStore, s.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%w: failed to sync %s: %v", ErrStore, s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: failed to close %s: %v", ErrStore, s.path, err)
	}
	return nil
}

func (s *Store) missingTrailingNewline() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to read %s: %v", ErrStore, s.path, err)
	}
	return len(data) > 0 && data[len(data)-1] != '\n', nil
}

// RemoveKey rewrites the file without any line assigning key. It reports
// whether a line was removed.
func (s *Store) RemoveKey(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to stat %s: %v", ErrStore, s.path, err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("%w: failed to read %s: %v", ErrStore, s.path, err)
	}

	var out bytes.Buffer
	removed := false
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if lineKey(line) == key {
			removed = true
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("%w: failed to scan %s: %v", ErrStore, s.path, err)
	}
	if !removed {
		return false, nil
	}

	if err := replaceFile(s.path, out.Bytes(), info.Mode().Perm()); err != nil {
		return false, err
	}
	slog.Info("Config key removed", "key", key, "path", s.path)
	return true, nil
}

func replaceFile(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %v", ErrStore, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to write temp file: %v", ErrStore, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to chmod temp file: %v", ErrStore, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to sync temp file: %v", ErrStore, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to close temp file: %v", ErrStore, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: failed to replace %s: %v", ErrStore, path, err)
	}
	return nil
}

func lineKey(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	line = strings.TrimPrefix(line, "export ")
	key, _, found := strings.Cut(line, "=")
	if !found {
		return ""
	}
	return strings.TrimSpace(key)
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, "=#\"' \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Validate reports whether every pair can be written to a store.
func Validate(pairs ...KeyValue) error {
	for _, kv := range pairs {
		if err := validate(kv); err != nil {
			return err
		}
	}
	return nil
}

// Values are written double-quoted, where the parser would expand escapes
// and variables.
func validate(kv KeyValue) error {
	if err := validateKey(kv.Key); err != nil {
		return err
	}
	if strings.ContainsAny(kv.Value, "\"\\$\r\n") {
		return fmt.Errorf("%w: value for %s contains a quote, backslash, dollar sign or newline", ErrInvalidValue, kv.Key)
	}
	return nil
}
