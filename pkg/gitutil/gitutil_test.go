package gitutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Helper function to create a temporary git repository for testing
func createTestRepo(t *testing.T) (string, func()) {
	t.Helper()
	repoPath, err := os.MkdirTemp("", "testrepo_")
	if err != nil {
		t.Fatalf("Failed to create temp dir for repo: %v", err)
	}

	cleanup := func() {
		os.RemoveAll(repoPath)
	}

	for _, args := range [][]string{
		{"init"},
		{"config", "user.name", "Test User"},
		{"config", "user.email", "test@example.com"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = repoPath
		if err := cmd.Run(); err != nil {
			cleanup()
			t.Fatalf("Failed to run git %v: %v", args, err)
		}
	}

	return repoPath, cleanup
}

func commitFile(t *testing.T, repoPath, name, content, message string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(repoPath, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	for _, args := range [][]string{{"add", name}, {"commit", "-m", message}} {
		cmd := exec.Command("git", args...)
		cmd.Dir = repoPath
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("Failed to run git %v: %v\n%s", args, err, out)
		}
	}
}

func TestOpenRepository(t *testing.T) {
	repoPath, cleanup := createTestRepo(t)
	defer cleanup()

	repo, err := OpenRepository(repoPath)
	if err != nil {
		t.Errorf("OpenRepository() error = %v, wantErr %v", err, false)
	}
	if repo == nil {
		t.Errorf("OpenRepository() repo is nil")
	}

	notRepo := t.TempDir()
	if _, err := OpenRepository(notRepo); err == nil {
		t.Errorf("OpenRepository() expected error for a directory outside any repository, got nil")
	}
}

func TestGetHeadCommit_EmptyRepo(t *testing.T) {
	repoPath, cleanup := createTestRepo(t)
	defer cleanup()

	repo, err := OpenRepository(repoPath)
	if err != nil {
		t.Fatalf("OpenRepository() error = %v", err)
	}
	if _, err := GetHeadCommit(repo); err == nil {
		t.Error("GetHeadCommit() on a repository without commits expected error, got nil")
	}
}

func TestHeadAuthor(t *testing.T) {
	repoPath, cleanup := createTestRepo(t)
	defer cleanup()
	commitFile(t, repoPath, "test.txt", "initial commit", "Initial commit")

	subdir := filepath.Join(repoPath, "nested")
	if err := os.Mkdir(subdir, 0755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}

	author, err := HeadAuthor(subdir)
	if err != nil {
		t.Fatalf("HeadAuthor() error = %v", err)
	}
	if author.Name != "Test User" || author.Email != "test@example.com" {
		t.Errorf("HeadAuthor() = %+v", author)
	}
	if author.String() != "Test User (test@example.com)" {
		t.Errorf("Author.String() = %q", author.String())
	}
}

func TestHeadChange_SkipReason(t *testing.T) {
	repoPath, cleanup := createTestRepo(t)
	defer cleanup()
	commitFile(t, repoPath, "test.txt", "v1", "Bump version [ci skip]")

	change, err := HeadChange(repoPath)
	if err != nil {
		t.Fatalf("HeadChange() error = %v", err)
	}
	if !strings.Contains(change.Message, "Bump version") {
		t.Errorf("HeadChange().Message = %q", change.Message)
	}

	testCases := []struct {
		name      string
		keyword   string
		committer string
		skip      bool
	}{
		{"no rules", "", "", false},
		{"keyword in message", "[ci skip]", "", true},
		{"keyword absent", "[skip stability]", "", false},
		{"committer name", "", "Test User", true},
		{"committer email", "", "test@example.com", true},
		{"other committer", "", "release-bot", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reason := change.SkipReason(tc.keyword, tc.committer)
			if (reason != "") != tc.skip {
				t.Errorf("SkipReason(%q, %q) = %q, want skip %v", tc.keyword, tc.committer, reason, tc.skip)
			}
		})
	}
}
