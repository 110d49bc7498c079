package machine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// FileEntry is a single file's content plus its last-modified time.
type FileEntry struct {
	Name     string    `json:"name"`
	Content  []byte    `json:"content"`
	Modified time.Time `json:"modified"`
}

// Directory is a named collection of files, nested arbitrarily deep.
type Directory struct {
	Name        string               `json:"name"`
	Files       map[string]*FileEntry `json:"files"`
	Directories map[string]*Directory `json:"directories"`
}

func newDirectory(name string) *Directory {
	return &Directory{Name: name, Files: map[string]*FileEntry{}, Directories: map[string]*Directory{}}
}

// FileSystemDevice is a synchronous in-memory filesystem driven through
// its Go methods. No instruction reaches it: OUT writes to the log
// sink's stdout and nothing in the interpreter calls this device.
// Adapted from original_source/file_system_device.h, which
// persists via the C++ cereal library; no JSON/serialization library
// other than the standard one appears anywhere in the retrieval pack,
// so persistence here uses encoding/json instead.
type FileSystemDevice struct {
	root *Directory
}

func NewFileSystemDevice() *FileSystemDevice {
	return &FileSystemDevice{root: newDirectory("/")}
}

func (d *FileSystemDevice) resolveDir(path []string, create bool) (*Directory, error) {
	cur := d.root
	for _, part := range path {
		if part == "" {
			continue
		}
		next, ok := cur.Directories[part]
		if !ok {
			if !create {
				return nil, fmt.Errorf("directory not found: %s", part)
			}
			next = newDirectory(part)
			cur.Directories[part] = next
		}
		cur = next
	}
	return cur, nil
}

// CreateFile writes content at dirPath/name, creating intermediate
// directories as needed.
func (d *FileSystemDevice) CreateFile(dirPath []string, name string, content []byte) error {
	dir, err := d.resolveDir(dirPath, true)
	if err != nil {
		return err
	}
	dir.Files[name] = &FileEntry{Name: name, Content: content, Modified: time.Now()}
	return nil
}

// AppendToFile appends content to an existing file, or creates it.
func (d *FileSystemDevice) AppendToFile(dirPath []string, name string, content []byte) error {
	dir, err := d.resolveDir(dirPath, true)
	if err != nil {
		return err
	}
	entry, ok := dir.Files[name]
	if !ok {
		entry = &FileEntry{Name: name}
		dir.Files[name] = entry
	}
	entry.Content = append(entry.Content, content...)
	entry.Modified = time.Now()
	return nil
}

// GetFileContent reads a file's bytes.
func (d *FileSystemDevice) GetFileContent(dirPath []string, name string) ([]byte, error) {
	dir, err := d.resolveDir(dirPath, false)
	if err != nil {
		return nil, err
	}
	entry, ok := dir.Files[name]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", name)
	}
	return entry.Content, nil
}

// ListContents returns the file and subdirectory names at dirPath.
func (d *FileSystemDevice) ListContents(dirPath []string) ([]string, error) {
	dir, err := d.resolveDir(dirPath, false)
	if err != nil {
		return nil, err
	}
	var names []string
	for name := range dir.Directories {
		names = append(names, name+"/")
	}
	for name := range dir.Files {
		names = append(names, name)
	}
	return names, nil
}

// SaveToFile persists the device's tree as JSON, matching the
// original's simulated_hdd.json snapshot file.
func (d *FileSystemDevice) SaveToFile(path string) error {
	b, err := json.MarshalIndent(d.root, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// LoadFromFile restores the device's tree from a JSON snapshot.
func (d *FileSystemDevice) LoadFromFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	root := newDirectory("/")
	if err := json.Unmarshal(b, root); err != nil {
		return err
	}
	d.root = root
	return nil
}
