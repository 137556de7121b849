package intake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

const publishRemoteName = "publish"

// Manager creates disposable working copies of the site repository so
// content changes never touch the checkout the server runs from.
type Manager struct {
	RepoRoot string
}

// Worktree is a temporary clone on a fresh branch. Callers must Cleanup.
type Worktree struct {
	Dir    string
	Branch string

	repo *git.Repository
}

// OriginURL reports where the site repository's origin remote points.
func (m *Manager) OriginURL() (string, error) {
	repo, err := git.PlainOpen(m.RepoRoot)
	if err != nil {
		return "", fmt.Errorf("open repository %s: %w", m.RepoRoot, err)
	}
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return "", fmt.Errorf("resolve origin remote: %w", err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("origin remote has no URL")
	}
	return urls[0], nil
}

// Create clones the repository into a temp directory at baseBranch and
// switches to a new branch named branchName.
func (m *Manager) Create(baseBranch, branchName string) (*Worktree, error) {
	dir, err := os.MkdirTemp("", "labsite-worktree-*")
	if err != nil {
		return nil, fmt.Errorf("create worktree directory: %w", err)
	}

	repo, err := git.PlainClone(dir, false, &git.CloneOptions{
		URL:           m.RepoRoot,
		ReferenceName: plumbing.NewBranchReferenceName(baseBranch),
		SingleBranch:  true,
	})
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("clone %s at %s: %w", m.RepoRoot, baseBranch, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branchName),
		Create: true,
	})
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("create branch %s: %w", branchName, err)
	}

	return &Worktree{Dir: dir, Branch: branchName, repo: repo}, nil
}

// WriteFile writes content at a repo-relative path inside the worktree,
// creating parent directories as needed.
func (w *Worktree) WriteFile(relPath string, content []byte) error {
	abs := filepath.Join(w.Dir, relPath)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", relPath, err)
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}
	return nil
}

// Commit stages the given repo-relative paths and commits them. It fails when
// the staged tree matches the base branch, so no-op submissions never produce
// an empty pull request.
func (w *Worktree) Commit(paths []string, message string) error {
	wt, err := w.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	for _, p := range paths {
		if _, err := wt.Add(filepath.ToSlash(p)); err != nil {
			return fmt.Errorf("stage %s: %w", p, err)
		}
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("read worktree status: %w", err)
	}
	if status.IsClean() {
		return conflictErrf("submission produced no changes to commit")
	}
	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Content Pipeline",
			Email: "content-pipeline@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit changes: %w", err)
	}
	return nil
}

// Push publishes the worktree branch to the given HTTPS remote URL using an
// installation-token credential.
func (w *Worktree) Push(ctx context.Context, pushURL, token string) error {
	remote, err := w.repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: publishRemoteName,
		URLs: []string{pushURL},
	})
	if err != nil {
		return fmt.Errorf("configure publish remote: %w", err)
	}
	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", w.Branch, w.Branch))
	opts := &git.PushOptions{
		RemoteName: publishRemoteName,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	}
	if token != "" {
		opts.Auth = &http.BasicAuth{
			Username: "x-access-token",
			Password: token,
		}
	}
	err = remote.PushContext(ctx, opts)
	if err != nil {
		return fmt.Errorf("push branch %s: %w", w.Branch, err)
	}
	return nil
}

// Cleanup removes the worktree directory. Safe to call more than once.
func (w *Worktree) Cleanup() error {
	if w.Dir == "" {
		return nil
	}
	err := os.RemoveAll(w.Dir)
	w.Dir = ""
	return err
}

// BuildBranchName derives a unique branch name for a submission.
func BuildBranchName(contentType ContentType, slug string, now time.Time) string {
	return fmt.Sprintf("content/%s/%s-%s", contentType, slug, now.Format("20060102-150405"))
}

// BuildCommitMessage formats the commit and pull request title.
func BuildCommitMessage(contentType ContentType, mode Mode, slug string) string {
	return fmt.Sprintf("content(%s): %s %s", contentType, mode, slug)
}
