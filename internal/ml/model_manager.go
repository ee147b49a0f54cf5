package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

const versionsFileName = "model_versions.json"

// ModelVersion is one registered classifier + codec pair.
type ModelVersion struct {
	Version      string    `json:"version"`
	ModelPath    string    `json:"model_path"`
	CodecPath    string    `json:"codec_path"`
	MetadataPath string    `json:"metadata_path,omitempty"`
	Format       string    `json:"format"`
	CreatedAt    time.Time `json:"created_at"`
	Accuracy     float64   `json:"accuracy,omitempty"`
	IsActive     bool      `json:"is_active"`
}

// Config returns the load configuration for this version. Python path,
// inference URL and timeout come from base.
func (v ModelVersion) Config(base Config) Config {
	base.ModelPath = v.ModelPath
	base.CodecPath = v.CodecPath
	base.MetadataPath = v.MetadataPath
	base.Format = v.Format
	return base
}

// ModelManager handles model versioning and rollback. Versions are kept
// newest first.
type ModelManager struct {
	modelsDir    string
	versionsFile string
	versions     []ModelVersion
	current      int
	now          func() time.Time
}

// NewModelManager opens the registry in modelsDir, creating the directory.
func NewModelManager(modelsDir string) (*ModelManager, error) {
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models directory: %w", err)
	}

	mm := &ModelManager{
		modelsDir:    modelsDir,
		versionsFile: filepath.Join(modelsDir, versionsFileName),
		current:      -1,
		now:          time.Now,
	}

	if err := mm.loadVersions(); err != nil {
		return nil, fmt.Errorf("load model versions: %w", err)
	}
	return mm, nil
}

// AddVersion registers a pair. An empty version string gets a timestamp
// tag. Relative paths are resolved against the models directory.
func (mm *ModelManager) AddVersion(v ModelVersion) (ModelVersion, error) {
	if v.ModelPath == "" && v.Format != FormatRemote {
		return ModelVersion{}, fmt.Errorf("model path is required")
	}
	if v.Format == "" {
		v.Format = FormatAuto
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = mm.now()
	}
	if v.Version == "" {
		v.Version = v.CreatedAt.Format("20060102-150405")
	}
	for _, existing := range mm.versions {
		if existing.Version == v.Version {
			return ModelVersion{}, fmt.Errorf("version %s already registered", v.Version)
		}
	}
	v.ModelPath = mm.resolve(v.ModelPath)
	v.CodecPath = mm.resolve(v.CodecPath)
	v.MetadataPath = mm.resolve(v.MetadataPath)
	v.IsActive = false

	mm.versions = append(mm.versions, v)
	mm.sortVersions()

	if err := mm.saveVersions(); err != nil {
		return ModelVersion{}, err
	}
	log.Info().Str("version", v.Version).Str("model_path", v.ModelPath).Msg("model version added")
	return v, nil
}

// ActivateVersion marks version as the active pair.
func (mm *ModelManager) ActivateVersion(version string) error {
	idx := -1
	for i := range mm.versions {
		if mm.versions[i].Version == version {
			idx = i
		}
	}
	if idx == -1 {
		return fmt.Errorf("version %s not found", version)
	}

	for i := range mm.versions {
		mm.versions[i].IsActive = i == idx
	}
	mm.current = idx
	return mm.saveVersions()
}

// Rollback activates the version registered before the active one.
func (mm *ModelManager) Rollback() error {
	if len(mm.versions) < 2 {
		return fmt.Errorf("no previous version available for rollback")
	}
	if mm.current == -1 {
		return fmt.Errorf("no active version found")
	}
	if mm.current+1 >= len(mm.versions) {
		return fmt.Errorf("no previous version available")
	}
	return mm.ActivateVersion(mm.versions[mm.current+1].Version)
}

// GetCurrentVersion returns the active version, if any.
func (mm *ModelManager) GetCurrentVersion() (ModelVersion, bool) {
	if mm.current == -1 {
		return ModelVersion{}, false
	}
	return mm.versions[mm.current], true
}

// ListVersions returns a copy of all versions, newest first.
func (mm *ModelManager) ListVersions() []ModelVersion {
	out := make([]ModelVersion, len(mm.versions))
	copy(out, mm.versions)
	return out
}

func (mm *ModelManager) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(mm.modelsDir, path)
}

func (mm *ModelManager) sortVersions() {
	var active string
	if mm.current != -1 {
		active = mm.versions[mm.current].Version
	}
	sort.SliceStable(mm.versions, func(i, j int) bool {
		return mm.versions[i].CreatedAt.After(mm.versions[j].CreatedAt)
	})
	mm.current = -1
	for i := range mm.versions {
		if mm.versions[i].Version == active {
			mm.current = i
		}
	}
}

func (mm *ModelManager) loadVersions() error {
	data, err := os.ReadFile(mm.versionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, &mm.versions); err != nil {
		return err
	}

	for i := range mm.versions {
		if mm.versions[i].IsActive {
			mm.current = i
			break
		}
	}
	mm.sortVersions()
	return nil
}

func (mm *ModelManager) saveVersions() error {
	data, err := json.MarshalIndent(mm.versions, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(mm.versionsFile, data, 0o600)
}
