// Package gitworkspace implements the Git Workspace Manager: ensuring a
// per-(repo,task) working copy of main, resetting to origin, and
// committing + pushing on successful mutation, with per-task
// serialization via a keyed mutex registry.
package gitworkspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
	"github.com/agentsdashboard/runtime-gateway/internal/git"
)

// Manager ensures per-(repo,task) workspaces are ready before a run and
// commits + pushes the result after.
type Manager struct {
	root   string
	runner git.Runner
}

// New creates a Manager rooted at workspacesRoot. If runner is nil,
// git.DefaultRunner() is used.
func New(workspacesRoot string, runner git.Runner) *Manager {
	if runner == nil {
		runner = git.DefaultRunner()
	}
	return &Manager{root: workspacesRoot, runner: runner}
}

func sanitize(id string) string {
	id = strings.ReplaceAll(id, "/", "-")
	id = strings.ReplaceAll(id, "\\", "-")
	if id == "" {
		return "unknown"
	}
	return id
}

// Path returns the workspace directory for a (repo_id,task_id) pair,
// without touching the filesystem.
func (m *Manager) Path(repoID, taskID string) string {
	return filepath.Join(m.root, sanitize(repoID), "tasks", sanitize(taskID))
}

// mainBranch resolves main-branch precedence: EnvironmentVars.DEFAULT_BRANCH
// > request branch > "main".
func mainBranch(req dispatch.DispatchRequest) string {
	if v := req.Env["DEFAULT_BRANCH"]; v != "" {
		return v
	}
	if req.Branch != "" {
		return req.Branch
	}
	return "main"
}

// Lock acquires the process-wide mutex for (repo_id,task_id). The caller
// must call the returned unlock function exactly once, after prep and
// finalize both complete (a job holds at most one such mutex for the
// duration of both).
func (m *Manager) Lock(repoID, taskID string) func() {
	mu := globalLocks.getTaskLock(repoID, taskID)
	mu.Lock()
	return mu.Unlock
}

// Prepare runs the ensure_workspace_ready protocol and returns the
// resulting WorkspaceContext.
func (m *Manager) Prepare(ctx context.Context, req dispatch.DispatchRequest) (dispatch.WorkspaceContext, error) {
	path := m.Path(req.RepositoryID, req.TaskID)
	main := mainBranch(req)

	gitDir := filepath.Join(path, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		if _, err := os.Stat(path); err == nil {
			if err := os.RemoveAll(path); err != nil {
				return dispatch.WorkspaceContext{}, &dispatch.GitError{Op: "rm existing dir", Err: err}
			}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return dispatch.WorkspaceContext{}, &dispatch.GitError{Op: "mkdir parent", Err: err}
		}
		if _, err := m.runner.Exec(ctx, filepath.Dir(path), "clone", req.CloneURL, path); err != nil {
			return dispatch.WorkspaceContext{}, &dispatch.GitError{Op: "clone", Output: err.Error()}
		}
	}

	if _, err := m.runner.Exec(ctx, path, "remote", "set-url", "origin", req.CloneURL); err != nil {
		return dispatch.WorkspaceContext{}, &dispatch.GitError{Op: "remote set-url", Output: err.Error()}
	}
	if _, err := m.runner.Exec(ctx, path, "fetch", "--prune", "origin"); err != nil {
		return dispatch.WorkspaceContext{}, &dispatch.GitError{Op: "fetch", Output: err.Error()}
	}

	if _, err := m.runner.Exec(ctx, path, "checkout", main); err != nil {
		if _, err := m.runner.Exec(ctx, path, "checkout", "-B", main, "origin/"+main); err != nil {
			return dispatch.WorkspaceContext{}, &dispatch.GitError{Op: "checkout main", Output: err.Error()}
		}
	}

	if _, err := m.runner.Exec(ctx, path, "reset", "--hard", "origin/"+main); err != nil {
		return dispatch.WorkspaceContext{}, &dispatch.GitError{Op: "reset --hard", Output: err.Error()}
	}
	if _, err := m.runner.Exec(ctx, path, "clean", "-fd"); err != nil {
		return dispatch.WorkspaceContext{}, &dispatch.GitError{Op: "clean -fd", Output: err.Error()}
	}

	head, err := m.runner.Exec(ctx, path, "rev-parse", "HEAD")
	if err != nil {
		return dispatch.WorkspaceContext{}, &dispatch.GitError{Op: "rev-parse HEAD", Output: err.Error()}
	}

	return dispatch.WorkspaceContext{
		WorkspacePath: path,
		MainBranch:    main,
		HeadBeforeRun: strings.TrimSpace(head),
	}, nil
}

// identity resolves commit author/committer identity from env, falling
// back to a bot identity.
func identity(env map[string]string) (name, email string) {
	name = firstNonEmpty(env["GIT_COMMITTER_NAME"], env["GIT_AUTHOR_NAME"], "AgentsDashboard Bot")
	email = firstNonEmpty(env["GIT_COMMITTER_EMAIL"], env["GIT_AUTHOR_EMAIL"], "agentsdashboard-bot@local")
	return
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Finalize runs the finalize protocol, mutating env in place to reflect
// commit/push outcomes, obsolete-run detection, and git-workflow failure
// demotion. Finalize must only be called when env.Status is already
// "succeeded"; callers must record metadata.gitWorkflow=skipped for
// non-success runs themselves and skip calling Finalize.
func (m *Manager) Finalize(ctx context.Context, wctx dispatch.WorkspaceContext, req dispatch.DispatchRequest, env *dispatch.ResultEnvelope) error {
	meta := env.EnsureMetadata()
	path := wctx.WorkspacePath

	if _, err := m.runner.Exec(ctx, path, "checkout", wctx.MainBranch); err != nil {
		if _, err := m.runner.Exec(ctx, path, "checkout", "-B", wctx.MainBranch, "origin/"+wctx.MainBranch); err != nil {
			return &dispatch.GitError{Op: "finalize checkout main", Output: err.Error()}
		}
	}

	status, err := m.runner.Exec(ctx, path, "status", "--porcelain")
	if err != nil {
		return &dispatch.GitError{Op: "status --porcelain", Output: err.Error()}
	}
	if strings.TrimSpace(status) == "" {
		env.Summary = "No changes produced"
		meta["runDisposition"] = "obsolete"
		meta["obsoleteReason"] = "no-diff"
		return nil
	}

	if _, err := m.runner.Exec(ctx, path, "add", "-A"); err != nil {
		return &dispatch.GitError{Op: "add -A", Output: err.Error()}
	}

	name, email := identity(req.Env)
	commitMsg := fmt.Sprintf("agent task %s: run %s", req.TaskID, req.RunID)
	_, commitErr := m.runner.Exec(ctx, path,
		"-c", "user.name="+name, "-c", "user.email="+email,
		"commit", "-m", commitMsg)
	if commitErr != nil {
		msg := commitErr.Error()
		if !strings.Contains(msg, "nothing to commit") && !strings.Contains(msg, "no changes added to commit") {
			env.Status = dispatch.StatusFailed
			env.Summary = "Git commit/push failed"
			meta["gitWorkflow"] = "failed"
			return nil
		}
	}

	headAfter, err := m.runner.Exec(ctx, path, "rev-parse", "HEAD")
	if err != nil {
		return &dispatch.GitError{Op: "rev-parse HEAD (after)", Output: err.Error()}
	}
	if strings.TrimSpace(headAfter) == wctx.HeadBeforeRun {
		env.Summary = "No changes produced"
		meta["runDisposition"] = "obsolete"
		meta["obsoleteReason"] = "no-diff"
		return nil
	}

	if _, err := m.runner.Exec(ctx, path, "push", "origin", wctx.MainBranch); err != nil {
		env.Status = dispatch.StatusFailed
		env.Summary = "Git commit/push failed"
		meta["gitWorkflow"] = "failed"
		return nil
	}

	meta["gitWorkflow"] = "main-pushed"
	return nil
}
