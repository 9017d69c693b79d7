package registry

import (
	"fmt"
	"os"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/charlievieth/fastwalk"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/attax1994/qiankun/internal/dom"
	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/shared/types"
)

// ManifestName is the file name the seeder looks for.
const ManifestName = "microapp.yaml"

// Manifest declares one application on disk.
type Manifest struct {
	Name      string                 `yaml:"name"`
	Entry     string                 `yaml:"entry"`
	Container string                 `yaml:"container"`
	Props     map[string]interface{} `yaml:"props,omitempty"`
}

// ParseManifest reads and validates a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var mf Manifest
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if mf.Name == "" {
		return nil, types.ConfigErrorf("manifest requires a name")
	}
	if mf.Entry == "" {
		return nil, types.ConfigErrorf("manifest for %s requires an entry", mf.Name)
	}
	if mf.Container == "" {
		return nil, types.ConfigErrorf("manifest for %s requires a container selector", mf.Name)
	}
	if _, err := cascadia.Parse(mf.Container); err != nil {
		return nil, types.ConfigErrorf("manifest for %s: container selector %q: %w", mf.Name, mf.Container, err)
	}
	return &mf, nil
}

// Descriptor converts the manifest into a registrable descriptor.
func (m *Manifest) Descriptor() *types.AppDescriptor {
	return &types.AppDescriptor{
		Name:      m.Name,
		Entry:     m.Entry,
		Props:     m.Props,
		Container: dom.Selector(m.Container),
	}
}

// Seeder discovers manifests under a directory tree and registers them.
type Seeder struct {
	manager *Manager
	dir     string
	log     *logging.Logger
}

// NewSeeder creates a seeder rooted at dir.
func NewSeeder(manager *Manager, dir string, log *logging.Logger) *Seeder {
	return &Seeder{manager: manager, dir: dir, log: log}
}

// Seed walks the tree and registers every valid manifest. Invalid
// manifests are skipped with a warning; an empty or missing root is not an
// error so hosts without embedded applications boot clean.
func (s *Seeder) Seed() error {
	if s.dir == "" {
		return nil
	}
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		s.log.Warn("seed directory does not exist", zap.String("dir", s.dir))
		return nil
	}

	// fastwalk runs the callback from multiple goroutines.
	var mu sync.Mutex
	registered, rejected := 0, 0

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != ManifestName {
			return nil
		}
		if rerr := s.registerManifest(path); rerr != nil {
			s.log.Warn("manifest rejected",
				zap.String("path", path),
				zap.Error(rerr))
			mu.Lock()
			rejected++
			mu.Unlock()
			return nil
		}
		mu.Lock()
		registered++
		mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", s.dir, err)
	}

	s.log.Info("registry seeded",
		zap.String("dir", s.dir),
		zap.Int("registered", registered),
		zap.Int("rejected", rejected))
	return nil
}

func (s *Seeder) registerManifest(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mf, err := ParseManifest(data)
	if err != nil {
		return err
	}
	return s.manager.Register(mf.Descriptor())
}
