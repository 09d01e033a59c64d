// Package storage provides the persistent artifact version registry.
// It uses BoltDB as the underlying storage engine to record which fitted
// artifact versions exist on disk and which one the service should load.
//
// The registry only tracks metadata; artifacts themselves stay as JSON files
// under the artifacts directory.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	versionsBucket = "artifact_versions" // version -> ArtifactVersion JSON
	registryBucket = "registry"          // registry-wide keys
	activeKey      = "active"
)

var (
	ErrVersionNotFound   = errors.New("artifact version not found")
	ErrVersionExists     = errors.New("artifact version already registered")
	ErrNoActiveVersion   = errors.New("no active artifact version")
	ErrNoPreviousVersion = errors.New("no previous artifact version available for rollback")
)

// ArtifactVersion is one registered artifact set.
type ArtifactVersion struct {
	Version   string    `json:"version"`
	Path      string    `json:"path"` // directory holding the artifact files
	CreatedAt time.Time `json:"created_at"`
	Notes     string    `json:"notes,omitempty"`
	IsActive  bool      `json:"is_active"`
}

// Registry records artifact versions in a BoltDB file.
type Registry struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens (creating if needed) the registry database at path.
func Open(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(versionsBucket)); err != nil {
			return fmt.Errorf("create versions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(registryBucket)); err != nil {
			return fmt.Errorf("create registry bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Registry{db: db, now: time.Now}, nil
}

// Close closes the database. Closing twice is a no-op.
func (r *Registry) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// AddVersion registers v. The version must be unique; a zero CreatedAt is
// set to the current time. Adding never changes the active version.
func (r *Registry) AddVersion(v ArtifactVersion) error {
	if v.Version == "" {
		return fmt.Errorf("artifact version must not be empty")
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = r.now()
	}
	v.IsActive = false

	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(versionsBucket))
		if b.Get([]byte(v.Version)) != nil {
			return fmt.Errorf("%w: %s", ErrVersionExists, v.Version)
		}

		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal artifact version: %w", err)
		}
		return b.Put([]byte(v.Version), data)
	})
}

// Activate marks version as the one to serve.
func (r *Registry) Activate(version string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(versionsBucket)).Get([]byte(version)) == nil {
			return fmt.Errorf("%w: %s", ErrVersionNotFound, version)
		}
		return tx.Bucket([]byte(registryBucket)).Put([]byte(activeKey), []byte(version))
	})
}

// Rollback activates the version registered immediately before the active
// one and returns it.
func (r *Registry) Rollback() (ArtifactVersion, error) {
	var target ArtifactVersion

	err := r.db.Update(func(tx *bbolt.Tx) error {
		versions, active, err := readAll(tx)
		if err != nil {
			return err
		}
		if active == "" {
			return ErrNoActiveVersion
		}

		// versions are newest first; the previous version follows the active one
		for i, v := range versions {
			if v.Version != active {
				continue
			}
			if i+1 >= len(versions) {
				return ErrNoPreviousVersion
			}
			target = versions[i+1]
			target.IsActive = true
			return tx.Bucket([]byte(registryBucket)).Put([]byte(activeKey), []byte(target.Version))
		}
		return fmt.Errorf("%w: active version %s", ErrVersionNotFound, active)
	})

	return target, err
}

// Active returns the active version.
func (r *Registry) Active() (ArtifactVersion, error) {
	var active ArtifactVersion

	err := r.db.View(func(tx *bbolt.Tx) error {
		name := tx.Bucket([]byte(registryBucket)).Get([]byte(activeKey))
		if name == nil {
			return ErrNoActiveVersion
		}
		data := tx.Bucket([]byte(versionsBucket)).Get(name)
		if data == nil {
			return fmt.Errorf("%w: active version %s", ErrVersionNotFound, name)
		}
		if err := json.Unmarshal(data, &active); err != nil {
			return fmt.Errorf("unmarshal artifact version: %w", err)
		}
		active.IsActive = true
		return nil
	})

	return active, err
}

// List returns every registered version, newest first.
func (r *Registry) List() ([]ArtifactVersion, error) {
	var versions []ArtifactVersion

	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		versions, _, err = readAll(tx)
		return err
	})

	return versions, err
}

// ResolveActive returns the active version and the directory holding its
// artifacts. Versions registered without a path resolve to a directory
// named after the version.
func (r *Registry) ResolveActive() (string, string, error) {
	active, err := r.Active()
	if err != nil {
		return "", "", err
	}
	dir := active.Path
	if dir == "" {
		dir = active.Version
	}
	return active.Version, dir, nil
}

func readAll(tx *bbolt.Tx) ([]ArtifactVersion, string, error) {
	active := string(tx.Bucket([]byte(registryBucket)).Get([]byte(activeKey)))

	var versions []ArtifactVersion
	err := tx.Bucket([]byte(versionsBucket)).ForEach(func(k, v []byte) error {
		var av ArtifactVersion
		if err := json.Unmarshal(v, &av); err != nil {
			return fmt.Errorf("unmarshal artifact version %s: %w", k, err)
		}
		av.IsActive = av.Version == active
		versions = append(versions, av)
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	sort.Slice(versions, func(i, j int) bool {
		if versions[i].CreatedAt.Equal(versions[j].CreatedAt) {
			return versions[i].Version > versions[j].Version
		}
		return versions[i].CreatedAt.After(versions[j].CreatedAt)
	})

	return versions, active, nil
}
