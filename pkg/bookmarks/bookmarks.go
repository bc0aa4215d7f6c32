// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package bookmarks provides saved navigation targets for the shell.
//
// Bookmarks are named absolute paths that can be:
// - Built-in (shipped with the shell)
// - User-defined (k8sh/bookmarks.yaml under the user config directory)
//
// A bookmark is used by prefixing its name with @ in cd, e.g. "cd @dns".
package bookmarks

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Bookmark is a named, reusable navigation target.
type Bookmark struct {
	Name        string `yaml:"name" json:"name"`
	Path        string `yaml:"path" json:"path"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Category    string `yaml:"category,omitempty" json:"category,omitempty"` // "builtin" or "user"
}

// Builtins ship with the shell to help users get started.
var Builtins = []Bookmark{
	{
		Name:        "root",
		Path:        "/",
		Description: "The cluster root",
		Category:    "builtin",
	},
	{
		Name:        "system",
		Path:        "/kube-system",
		Description: "The kube-system namespace",
		Category:    "builtin",
	},
}

// userFile is the path to user-defined bookmarks.
func userFile() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine config directory: %w", err)
	}
	return filepath.Join(configDir, "k8sh", "bookmarks.yaml"), nil
}

// userConfig is the structure of the user bookmarks file.
type userConfig struct {
	Bookmarks []Bookmark `yaml:"bookmarks"`
}

// Store manages bookmarks from the built-in set and the user file.
type Store struct {
	path      string
	bookmarks []Bookmark
}

// NewStore loads built-in and user bookmarks.
func NewStore() (*Store, error) {
	path, err := userFile()
	if err != nil {
		return nil, err
	}
	return NewStoreAt(path)
}

// NewStoreAt loads a store backed by an explicit user file path.
func NewStoreAt(path string) (*Store, error) {
	store := &Store{path: path}
	store.bookmarks = append(store.bookmarks, Builtins...)

	user, err := loadUser(path)
	if err != nil {
		return nil, err
	}
	for i := range user {
		user[i].Category = "user"
	}
	store.bookmarks = append(store.bookmarks, user...)
	return store, nil
}

// BuiltinsOnly returns a store with no user file, for when the user
// configuration directory cannot be located. Save and Delete will fail.
func BuiltinsOnly() *Store {
	return &Store{bookmarks: append([]Bookmark{}, Builtins...)}
}

func loadUser(path string) ([]Bookmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read bookmarks file: %w", err)
	}
	var cfg userConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse bookmarks file: %w", err)
	}
	return cfg.Bookmarks, nil
}

// All returns every bookmark, built-ins first.
func (s *Store) All() []Bookmark {
	return s.bookmarks
}

// Get looks a bookmark up by name.
func (s *Store) Get(name string) (Bookmark, bool) {
	// User bookmarks shadow built-ins of the same name.
	for i := len(s.bookmarks) - 1; i >= 0; i-- {
		if s.bookmarks[i].Name == name {
			return s.bookmarks[i], true
		}
	}
	return Bookmark{}, false
}

// Save adds or updates a user bookmark and persists the user file.
func (s *Store) Save(bookmark Bookmark) error {
	bookmark.Category = "user"

	user, err := loadUser(s.path)
	if err != nil {
		return err
	}
	replaced := false
	for i := range user {
		if user[i].Name == bookmark.Name {
			user[i] = bookmark
			replaced = true
			break
		}
	}
	if !replaced {
		user = append(user, bookmark)
	}
	if err := s.writeUser(user); err != nil {
		return err
	}
	return s.reload()
}

// Delete removes a user bookmark. Built-ins cannot be removed.
func (s *Store) Delete(name string) error {
	user, err := loadUser(s.path)
	if err != nil {
		return err
	}
	kept := user[:0]
	for _, b := range user {
		if b.Name != name {
			kept = append(kept, b)
		}
	}
	if len(kept) == len(user) {
		return fmt.Errorf("no user bookmark named %s", name)
	}
	if err := s.writeUser(kept); err != nil {
		return err
	}
	return s.reload()
}

func (s *Store) writeUser(user []Bookmark) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create bookmarks dir: %w", err)
	}
	data, err := yaml.Marshal(userConfig{Bookmarks: user})
	if err != nil {
		return fmt.Errorf("encode bookmarks: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write bookmarks file: %w", err)
	}
	return nil
}

func (s *Store) reload() error {
	fresh, err := NewStoreAt(s.path)
	if err != nil {
		return err
	}
	s.bookmarks = fresh.bookmarks
	return nil
}
