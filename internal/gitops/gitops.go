// Package gitops snapshots a ledger directory into git history.
package gitops

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Author is the identity recorded on snapshot commits.
type Author struct {
	Name  string
	Email string
}

func (a Author) String() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// run executes git in dir. The committer identity follows the author so
// commits work on machines without a git user configured.
func run(dir string, author Author, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_COMMITTER_NAME="+author.Name,
		"GIT_COMMITTER_EMAIL="+author.Email,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Init initializes a new git repository at dir.
func Init(dir string) error {
	_, err := run(dir, Author{}, "init", "--quiet")
	return err
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// HasChanges reports whether the work tree differs from HEAD, untracked
// files included.
func HasChanges(dir string) (bool, error) {
	out, err := run(dir, Author{}, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// CommitAll stages all files and creates a commit. Returns the short commit hash.
func CommitAll(dir, message string, author Author) (string, error) {
	if _, err := run(dir, author, "add", "-A"); err != nil {
		return "", err
	}
	if _, err := run(dir, author, "commit", "--quiet", "-m", message, "--author", author.String()); err != nil {
		return "", err
	}
	return run(dir, author, "rev-parse", "--short", "HEAD")
}

// Snapshot commits the current state of dir, initializing the repository
// on first use. It returns "" when there was nothing to commit.
func Snapshot(dir, message string, author Author) (string, error) {
	if !IsRepo(dir) {
		if err := Init(dir); err != nil {
			return "", err
		}
	}
	changed, err := HasChanges(dir)
	if err != nil || !changed {
		return "", err
	}
	return CommitAll(dir, message, author)
}
