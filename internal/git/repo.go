package git

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Repository is the git repository enclosing a directory.
type Repository struct {
	repo *git.Repository
	root string
}

// CommitInfo describes a single commit.
type CommitInfo struct {
	Hash        string
	Message     string
	AuthorName  string
	AuthorEmail string
	CommittedAt time.Time
}

// OpenRepo opens the repository containing path, searching parent
// directories for the .git folder.
func OpenRepo(path string) (*Repository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	repo, err := git.PlainOpenWithOptions(absPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %w", absPath, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}

	return &Repository{
		repo: repo,
		root: wt.Filesystem.Root(),
	}, nil
}

// Root returns the worktree root.
func (r *Repository) Root() string {
	return r.root
}

func (r *Repository) HeadHash() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// IsDirty reports whether files under dir have uncommitted changes.
// An empty dir checks the whole worktree.
func (r *Repository) IsDirty(dir string) (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("failed to get status: %w", err)
	}

	prefix, err := r.relative(dir)
	if err != nil {
		return false, err
	}
	for file, s := range status {
		if s.Staging == git.Unmodified && s.Worktree == git.Unmodified {
			continue
		}
		if prefix == "" || file == prefix || strings.HasPrefix(file, prefix+"/") {
			return true, nil
		}
	}
	return false, nil
}

// LastChange returns the newest commit touching files under dir.
func (r *Repository) LastChange(dir string) (*CommitInfo, error) {
	prefix, err := r.relative(dir)
	if err != nil {
		return nil, err
	}

	opts := &git.LogOptions{}
	if prefix != "" {
		opts.PathFilter = func(p string) bool {
			return p == prefix || strings.HasPrefix(p, prefix+"/")
		}
	}

	iter, err := r.repo.Log(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	c, err := iter.Next()
	if err != nil {
		return nil, fmt.Errorf("no commits touch %s: %w", dir, err)
	}
	return commitInfo(c), nil
}

func (r *Repository) relative(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "", nil
	}
	if strings.HasPrefix(rel, "../") {
		return "", errors.New(dir + " is outside the repository")
	}
	return rel, nil
}

func commitInfo(c *object.Commit) *CommitInfo {
	return &CommitInfo{
		Hash:        c.Hash.String(),
		Message:     strings.TrimSpace(c.Message),
		AuthorName:  c.Author.Name,
		AuthorEmail: c.Author.Email,
		CommittedAt: c.Author.When,
	}
}

// Revision returns a short revision label for the repository around dir:
// the abbreviated HEAD hash with a "-dirty" suffix when dir has
// uncommitted changes. Outside a repository it returns "".
func Revision(dir string) string {
	repo, err := OpenRepo(dir)
	if err != nil {
		return ""
	}
	hash, err := repo.HeadHash()
	if err != nil {
		return ""
	}
	rev := hash[:12]
	if dirty, err := repo.IsDirty(dir); err == nil && dirty {
		rev += "-dirty"
	}
	return rev
}
