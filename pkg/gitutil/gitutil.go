package gitutil

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Author identifies the person behind a commit.
type Author struct {
	Name  string
	Email string
}

// String formats the author as "Name (email)".
func (a Author) String() string {
	if a.Email == "" {
		return a.Name
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.Email)
}

// OpenRepository opens the git repository containing path.
func OpenRepository(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	return repo, nil
}

// GetHeadCommit retrieves the commit object for the repository's HEAD.
func GetHeadCommit(repo *git.Repository) (*object.Commit, error) {
	headRef, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD reference: %w", err)
	}

	commit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object for HEAD (%s): %w", headRef.Hash(), err)
	}
	return commit, nil
}

// Change is the HEAD commit a build was started for.
type Change struct {
	Author  Author
	Message string
}

// HeadChange returns the author and message of the HEAD commit of the
// repository at repoPath.
func HeadChange(repoPath string) (Change, error) {
	repo, err := OpenRepository(repoPath)
	if err != nil {
		return Change{}, err
	}
	head, err := GetHeadCommit(repo)
	if err != nil {
		return Change{}, err
	}
	return Change{
		Author: Author{
			Name:  strings.TrimSpace(head.Author.Name),
			Email: strings.TrimSpace(head.Author.Email),
		},
		Message: head.Message,
	}, nil
}

// HeadAuthor returns the author of the HEAD commit of the repository at
// repoPath, the change a build is blamed on.
func HeadAuthor(repoPath string) (Author, error) {
	change, err := HeadChange(repoPath)
	if err != nil {
		return Author{}, err
	}
	return change.Author, nil
}

// SkipReason explains why a build of c is not recorded: its message contains
// keyword, or its author's name or email equals committer. Empty rules never
// match. The result is empty when the build should be recorded.
func (c Change) SkipReason(keyword, committer string) string {
	if keyword != "" && strings.Contains(c.Message, keyword) {
		return fmt.Sprintf("commit message contains %q", keyword)
	}
	if committer != "" && (c.Author.Name == committer || c.Author.Email == committer) {
		return fmt.Sprintf("commit by %s", c.Author)
	}
	return ""
}
