package shard

import (
	"os"
	"os/exec"
	"path/filepath"
)

// sandboxBinary is the auxiliary executable whose observable behavior (not
// internals) is specified: bubblewrap, invoked only if present on PATH
// (spec §4.6 "If the sandbox binary is absent, run the child unwrapped").
const sandboxBinary = "bwrap"

// SandboxAvailable reports whether the sandbox binary is on PATH.
func SandboxAvailable() bool {
	_, err := exec.LookPath(sandboxBinary)
	return err == nil
}

// WrapArgv composes the bwrap invocation described in spec §4.6: `/`
// read-only, the worktree/tmp/dev/proc writable, the worktree's own git
// metadata and the main repository's objects/refs/heads/logs writable so
// commits can be created, and a small allow-list of user config dirs bound
// through if present. argv is the original child command to run inside the
// sandbox. Returns argv unchanged if the sandbox binary is unavailable.
func WrapArgv(repoRoot, worktreePath string, argv []string) []string {
	if !SandboxAvailable() || len(argv) == 0 {
		return argv
	}

	wrapped := []string{
		sandboxBinary,
		"--ro-bind", "/", "/",
		"--bind", worktreePath, worktreePath,
		"--bind", "/tmp", "/tmp",
		"--dev-bind", "/dev", "/dev",
		"--proc", "/proc",
	}

	if gitDir := resolveWorktreeGitDir(worktreePath); gitDir != "" {
		wrapped = append(wrapped, "--bind", gitDir, gitDir)
	}

	wrapped = append(wrapped,
		"--bind", filepath.Join(repoRoot, ".git", "objects"), filepath.Join(repoRoot, ".git", "objects"),
		"--bind", filepath.Join(repoRoot, ".git", "refs", "heads"), filepath.Join(repoRoot, ".git", "refs", "heads"),
		"--bind", filepath.Join(repoRoot, ".git", "logs", "refs", "heads"), filepath.Join(repoRoot, ".git", "logs", "refs", "heads"),
	)

	for _, dir := range allowedConfigDirs() {
		if _, err := os.Stat(dir); err == nil {
			wrapped = append(wrapped, "--bind", dir, dir)
		}
	}

	wrapped = append(wrapped, "--chdir", worktreePath)
	wrapped = append(wrapped, argv...)
	return wrapped
}

// resolveWorktreeGitDir reads the worktree's `.git` pointer file (a plain
// text file containing `gitdir: <path>` for worktrees, unlike the main
// repository's `.git` directory) and returns the path it references so it
// can be bound writable into the sandbox.
func resolveWorktreeGitDir(worktreePath string) string {
	data, err := os.ReadFile(filepath.Join(worktreePath, ".git"))
	if err != nil {
		return ""
	}
	const prefix = "gitdir: "
	s := string(data)
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		path := s[len(prefix):]
		for len(path) > 0 && (path[len(path)-1] == '\n' || path[len(path)-1] == '\r') {
			path = path[:len(path)-1]
		}
		return path
	}
	return ""
}

// allowedConfigDirs is the small allow-list of user config directories
// bound through when present (spec §4.6).
func allowedConfigDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".gitconfig"),
		filepath.Join(home, ".config", "git"),
		filepath.Join(home, ".netrc"),
	}
}
