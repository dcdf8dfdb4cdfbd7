package detect

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	markerFileModeConstant           = os.FileMode(0o644)
	markerDirectoryModeConstant      = os.FileMode(0o755)
	statePathMissingMessageConstant  = "state file path not configured"
	markerReadErrorTemplateConstant  = "reading sync marker %s: %w"
	markerParseErrorTemplateConstant = "parsing sync marker %s: %w"
	markerWriteErrorTemplateConstant = "writing sync marker %s: %w"
)

// ErrStatePathNotConfigured indicates the marker store was constructed without a path.
var ErrStatePathNotConfigured = errors.New(statePathMissingMessageConstant)

// Marker records the template commit that completed the last successful sync run.
type Marker struct {
	LastSyncedCommit string    `yaml:"last_synced_commit"`
	UpdatedAt        time.Time `yaml:"updated_at"`
}

// MarkerStore persists the sync marker as a YAML file.
type MarkerStore struct {
	statePath string
}

// NewMarkerStore constructs a marker store backed by the provided file path.
func NewMarkerStore(statePath string) (*MarkerStore, error) {
	if len(statePath) == 0 {
		return nil, ErrStatePathNotConfigured
	}
	return &MarkerStore{statePath: statePath}, nil
}

// Load reads the persisted marker. A missing file yields a zero marker so the
// first run treats the current template head as new.
func (store *MarkerStore) Load() (Marker, error) {
	markerBytes, readError := os.ReadFile(store.statePath)
	if readError != nil {
		if errors.Is(readError, os.ErrNotExist) {
			return Marker{}, nil
		}
		return Marker{}, fmt.Errorf(markerReadErrorTemplateConstant, store.statePath, readError)
	}

	var persistedMarker Marker
	if parseError := yaml.Unmarshal(markerBytes, &persistedMarker); parseError != nil {
		return Marker{}, fmt.Errorf(markerParseErrorTemplateConstant, store.statePath, parseError)
	}

	return persistedMarker, nil
}

// Save persists the marker, creating parent directories when necessary.
func (store *MarkerStore) Save(marker Marker) error {
	markerBytes, encodingError := yaml.Marshal(marker)
	if encodingError != nil {
		return fmt.Errorf(markerWriteErrorTemplateConstant, store.statePath, encodingError)
	}

	parentDirectory := filepath.Dir(store.statePath)
	if directoryError := os.MkdirAll(parentDirectory, markerDirectoryModeConstant); directoryError != nil {
		return fmt.Errorf(markerWriteErrorTemplateConstant, store.statePath, directoryError)
	}

	if writeError := os.WriteFile(store.statePath, markerBytes, markerFileModeConstant); writeError != nil {
		return fmt.Errorf(markerWriteErrorTemplateConstant, store.statePath, writeError)
	}

	return nil
}
