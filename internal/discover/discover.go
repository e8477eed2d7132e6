// Package discover finds record documents under a snapshot root.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/methodmap/internal/model"
)

// ErrUnusableRoot is returned when the snapshot root cannot be enumerated.
var ErrUnusableRoot = errors.New("unusable input root")

// FileEntry represents a discovered record document.
type FileEntry struct {
	Path   string // Relative to the snapshot root
	Origin model.Origin
}

// Patterns selects record documents by file name suffix.
type Patterns struct {
	SourceSuffix   string
	CompiledSuffix string
	// RespectIgnore drops files excluded by git (or by .gitignore outside
	// a git checkout). Record documents are often generated into ignored
	// directories, so this is off unless asked for.
	RespectIgnore bool
}

// Origin classifies a file name, or returns "" for other files.
func (p Patterns) Origin(name string) model.Origin {
	switch {
	case p.SourceSuffix != "" && strings.HasSuffix(name, p.SourceSuffix):
		return model.Source
	case p.CompiledSuffix != "" && strings.HasSuffix(name, p.CompiledSuffix):
		return model.Compiled
	}
	return ""
}

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
}

type walkFunc func(root string, fn fs.WalkDirFunc) error

// Files discovers record documents under root, sorted by path.
// Unreadable entries below the root are skipped and reported as
// diagnostics; a root that is missing, not a directory, or unreadable
// fails with ErrUnusableRoot.
func Files(root string, p Patterns) ([]FileEntry, []model.Diagnostic, error) {
	return files(root, p, filepath.WalkDir)
}

func files(root string, p Patterns, walk walkFunc) ([]FileEntry, []model.Diagnostic, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnusableRoot, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s is not a directory", ErrUnusableRoot, root)
	}

	var gitFiles map[string]struct{}
	var gi *ignore.GitIgnore
	if p.RespectIgnore {
		gitFiles = gitLsFiles(root)
		if gitFiles == nil {
			gi = loadGitignore(root)
		}
	}

	var results []FileEntry
	var skipped []model.Diagnostic

	err = walk(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			skipped = append(skipped, model.Diagnostic{File: rel, Message: err.Error()})
			return nil
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		origin := p.Origin(name)
		if origin == "" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[filepath.ToSlash(rel)]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		results = append(results, FileEntry{Path: rel, Origin: origin})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnusableRoot, err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, skipped, nil
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
