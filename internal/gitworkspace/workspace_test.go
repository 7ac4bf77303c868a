package gitworkspace

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu        sync.Mutex
	responses map[string][]fakeResponse
	calls     []string
}

type fakeResponse struct {
	out string
	err error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: make(map[string][]fakeResponse)}
}

func (f *fakeRunner) stub(args string, out string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[args] = append(f.responses[args], fakeResponse{out: out, err: err})
}

func (f *fakeRunner) Exec(ctx context.Context, dir string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.mu.Lock()
	f.calls = append(f.calls, key)
	queue := f.responses[key]
	if len(queue) == 0 {
		f.mu.Unlock()
		return "", fmt.Errorf("unexpected git call: %s", key)
	}
	resp := queue[0]
	f.responses[key] = queue[1:]
	f.mu.Unlock()
	return resp.out, resp.err
}

func (f *fakeRunner) ExecWithStdin(ctx context.Context, dir string, stdin string, args ...string) (string, error) {
	return f.Exec(ctx, dir, args...)
}

func TestSanitize(t *testing.T) {
	require.Equal(t, "unknown", sanitize(""))
	require.Equal(t, "a-b", sanitize("a/b"))
	require.Equal(t, "a-b", sanitize(`a\b`))
}

func TestMainBranch_Precedence(t *testing.T) {
	req := dispatch.DispatchRequest{Branch: "feature-x"}
	require.Equal(t, "feature-x", mainBranch(req))

	req.Env = map[string]string{"DEFAULT_BRANCH": "trunk"}
	require.Equal(t, "trunk", mainBranch(req))

	req = dispatch.DispatchRequest{}
	require.Equal(t, "main", mainBranch(req))
}

func TestManager_Prepare_ExistingRepo(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, nil)
	repoPath := m.Path("org/repo", "t1")
	require.NoError(t, os.MkdirAll(repoPath+"/.git", 0o755))

	runner := newFakeRunner()
	runner.stub("remote set-url origin https://example/repo.git", "", nil)
	runner.stub("fetch --prune origin", "", nil)
	runner.stub("checkout main", "", nil)
	runner.stub("reset --hard origin/main", "", nil)
	runner.stub("clean -fd", "", nil)
	runner.stub("rev-parse HEAD", "abc123\n", nil)
	m.runner = runner

	req := dispatch.DispatchRequest{RepositoryID: "org/repo", TaskID: "t1", CloneURL: "https://example/repo.git"}
	wctx, err := m.Prepare(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "main", wctx.MainBranch)
	require.Equal(t, "abc123", wctx.HeadBeforeRun)
}

func TestManager_Finalize_ObsoleteOnEmptyDiff(t *testing.T) {
	runner := newFakeRunner()
	runner.stub("checkout main", "", nil)
	runner.stub("status --porcelain", "", nil)

	m := New(t.TempDir(), runner)
	env := &dispatch.ResultEnvelope{Status: dispatch.StatusSucceeded}
	wctx := dispatch.WorkspaceContext{WorkspacePath: "/work/repo", MainBranch: "main", HeadBeforeRun: "abc"}

	err := m.Finalize(context.Background(), wctx, dispatch.DispatchRequest{}, env)
	require.NoError(t, err)
	require.Equal(t, "No changes produced", env.Summary)
	require.Equal(t, "obsolete", env.Metadata["runDisposition"])
	require.Equal(t, "no-diff", env.Metadata["obsoleteReason"])
}

func TestManager_Finalize_CommitAndPush(t *testing.T) {
	runner := newFakeRunner()
	runner.stub("checkout main", "", nil)
	runner.stub("status --porcelain", " M file.go\n", nil)
	runner.stub("add -A", "", nil)
	runner.stub("-c user.name=AgentsDashboard Bot -c user.email=agentsdashboard-bot@local commit -m agent task t1: run r1", "", nil)
	runner.stub("rev-parse HEAD", "def456\n", nil)
	runner.stub("push origin main", "", nil)

	m := New(t.TempDir(), runner)
	env := &dispatch.ResultEnvelope{Status: dispatch.StatusSucceeded}
	wctx := dispatch.WorkspaceContext{WorkspacePath: "/work/repo", MainBranch: "main", HeadBeforeRun: "abc"}
	req := dispatch.DispatchRequest{RunID: "r1", TaskID: "t1"}

	err := m.Finalize(context.Background(), wctx, req, env)
	require.NoError(t, err)
	require.Equal(t, "main-pushed", env.Metadata["gitWorkflow"])
	require.Equal(t, dispatch.StatusSucceeded, env.Status)
}

func TestManager_Finalize_PushFailureDemotesEnvelope(t *testing.T) {
	runner := newFakeRunner()
	runner.stub("checkout main", "", nil)
	runner.stub("status --porcelain", " M file.go\n", nil)
	runner.stub("add -A", "", nil)
	runner.stub("-c user.name=AgentsDashboard Bot -c user.email=agentsdashboard-bot@local commit -m agent task t1: run r1", "", nil)
	runner.stub("rev-parse HEAD", "def456\n", nil)
	runner.stub("push origin main", "", fmt.Errorf("remote rejected"))

	m := New(t.TempDir(), runner)
	env := &dispatch.ResultEnvelope{Status: dispatch.StatusSucceeded}
	wctx := dispatch.WorkspaceContext{WorkspacePath: "/work/repo", MainBranch: "main", HeadBeforeRun: "abc"}
	req := dispatch.DispatchRequest{RunID: "r1", TaskID: "t1"}

	err := m.Finalize(context.Background(), wctx, req, env)
	require.NoError(t, err)
	require.Equal(t, dispatch.StatusFailed, env.Status)
	require.Equal(t, "Git commit/push failed", env.Summary)
	require.Equal(t, "failed", env.Metadata["gitWorkflow"])
}

func TestLockRegistry_SameKeySameMutex(t *testing.T) {
	m1 := globalLocks.getTaskLock("repo", "task")
	m2 := globalLocks.getTaskLock("REPO", "TASK")
	require.Same(t, m1, m2)
}
