package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/remiblancher/qasn1/profiles"
)

// LoadProfileFromBytes parses and validates a YAML profile.
func LoadProfileFromBytes(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, NewProfileError("", fmt.Errorf("failed to parse YAML: %w", err))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProfile loads a profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}
	p, err := LoadProfileFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// BuiltinProfiles loads every embedded profile, keyed by name.
func BuiltinProfiles() (map[string]*Profile, error) {
	out := make(map[string]*Profile)
	err := fs.WalkDir(profiles.FS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || (path.Ext(p) != ".yaml" && path.Ext(p) != ".yml") {
			return nil
		}
		data, err := fs.ReadFile(profiles.FS, p)
		if err != nil {
			return err
		}
		prof, err := LoadProfileFromBytes(data)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if _, dup := out[prof.Name]; dup {
			return NewProfileError(prof.Name, fmt.Errorf("%w: duplicate built-in profile", ErrInvalidProfile))
		}
		out[prof.Name] = prof
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BuiltinNames returns the names of the embedded profiles, sorted.
func BuiltinNames() ([]string, error) {
	all, err := BuiltinProfiles()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for n := range all {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Load resolves nameOrPath: an existing file is loaded from disk,
// otherwise the built-in profile of that name is returned.
func Load(nameOrPath string) (*Profile, error) {
	if _, err := os.Stat(nameOrPath); err == nil {
		return LoadProfile(nameOrPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	all, err := BuiltinProfiles()
	if err != nil {
		return nil, err
	}
	if p, ok := all[nameOrPath]; ok {
		return p, nil
	}
	return nil, NewProfileError(nameOrPath, ErrProfileNotFound)
}
