// Package dispatch defines the data model shared across the gateway's
// admission, execution, and workspace layers: the request a control plane
// submits, the job the queue tracks, the view a harness runtime consumes,
// and the envelope returned to the caller.
package dispatch

import "time"

// ExecutionMode is the harness execution mode requested for a run.
type ExecutionMode string

const (
	ModeDefault ExecutionMode = "default"
	ModePlan    ExecutionMode = "plan"
	ModeReview  ExecutionMode = "review"
)

// MultimodalPart is one part of a multimodal prompt: either a text part or
// a reference to an image artifact.
type MultimodalPart struct {
	Text     string `json:"text,omitempty"`
	ImageRef string `json:"image_ref,omitempty"`
}

// SandboxProfile bounds the resources and network access granted to a
// harness run's container.
type SandboxProfile struct {
	CPULimit       float64 `json:"cpu_limit"`
	MemoryBytes    int64   `json:"memory_bytes"`
	NetworkDisabled bool   `json:"network_disabled"`
	ReadOnlyRootfs bool    `json:"read_only_rootfs"`
}

// ArtifactPolicy bounds how many artifact files, and how many total bytes,
// the executor extracts from a finished run's workspace.
type ArtifactPolicy struct {
	MaxCount int   `json:"max_count"`
	MaxBytes int64 `json:"max_bytes"`
}

// DefaultArtifactPolicy is the policy applied when a request leaves
// ArtifactPolicy zero-valued.
func DefaultArtifactPolicy() ArtifactPolicy {
	return ArtifactPolicy{MaxCount: 50, MaxBytes: 100 * 1024 * 1024}
}

// DispatchRequest is the admitted unit a control plane submits for
// execution.
type DispatchRequest struct {
	RunID        string `json:"run_id"`
	TaskID       string `json:"task_id"`
	RepositoryID string `json:"repository_id"`

	Harness string        `json:"harness"`
	Mode    ExecutionMode `json:"mode"`

	Prompt         string           `json:"prompt,omitempty"`
	MultimodalParts []MultimodalPart `json:"multimodal_parts,omitempty"`
	Command        string           `json:"command,omitempty"`

	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	CloneURL string `json:"clone_url,omitempty"`
	Branch   string `json:"branch,omitempty"`

	Env    map[string]string `json:"env,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`

	Sandbox  SandboxProfile `json:"sandbox"`
	Artifact ArtifactPolicy `json:"artifact_policy"`

	ProtocolVersion string `json:"protocol_version,omitempty"`
}

// Validate checks the minimal admission invariants: non-empty run id and a
// recognised harness name. It does not check workspace or runtime
// reachability — those are discovered during execution.
func (r DispatchRequest) Validate(knownHarnesses map[string]bool) error {
	if r.RunID == "" {
		return &ValidationError{Reason: "run_id is required"}
	}
	if r.Harness == "" {
		return &ValidationError{Reason: "harness is required"}
	}
	if knownHarnesses != nil && !knownHarnesses[r.Harness] {
		return &ValidationError{Reason: "unknown harness: " + r.Harness}
	}
	return nil
}

// WorkspaceContext describes the per-run git working copy prepared by the
// Git Workspace Manager. It is created after prep and consumed by
// finalization; ownership is exclusive to one executor run.
type WorkspaceContext struct {
	WorkspacePath string
	MainBranch    string
	HeadBeforeRun string
}

// HarnessRunRequest is the runtime-facing view derived from a
// DispatchRequest: resolved workspace path, normalized mode, timeout as a
// duration, and the host path harness runtimes should write artifacts to.
type HarnessRunRequest struct {
	DispatchRequest

	WorkspacePath     string
	Mode              string
	Timeout           time.Duration
	ArtifactsHostPath string
	CPULimit          float64
	MemoryLimit       string
}

// ResultEnvelope is the normalized result of a run, surfaced to the control
// plane. Every envelope surfaced externally must have a non-empty Status
// and Summary.
type ResultEnvelope struct {
	RunID  string `json:"run_id"`
	TaskID string `json:"task_id"`

	Status  string `json:"status"`
	Summary string `json:"summary"`
	Error   string `json:"error,omitempty"`

	Artifacts []string           `json:"artifacts,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Metadata  map[string]string  `json:"metadata,omitempty"`
	Actions   []ResultAction     `json:"actions,omitempty"`
}

// ResultAction is a suggested follow-up surfaced by the control plane UI
// (e.g. "open PR"). The gateway only populates this; it never acts on it.
type ResultAction struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Target      string `json:"target"`
}

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
)

// EnsureMetadata lazily initializes Metadata and returns it.
func (e *ResultEnvelope) EnsureMetadata() map[string]string {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	return e.Metadata
}

// Validate enforces the non-empty status/summary invariant, substituting a
// synthetic failed/validation envelope when both are empty (open question
// "validation fallback", resolved: populate a canned summary rather than
// leaving it blank).
func (e *ResultEnvelope) Validate() {
	if e.Status == "" && e.Summary == "" {
		e.Status = StatusFailed
		e.Summary = "harness produced no result"
		return
	}
	if e.Status == "" {
		e.Status = StatusFailed
	}
	if e.Summary == "" {
		e.Summary = "harness produced no result"
	}
}

// FailedEnvelope builds a terminal failed envelope with the given summary.
func FailedEnvelope(runID, taskID, summary string, err error) ResultEnvelope {
	e := ResultEnvelope{RunID: runID, TaskID: taskID, Status: StatusFailed, Summary: summary}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// OrchestratorContainer is a container discovered by its orchestrator
// labels, derived from `orchestrator=true, run_id=<id>`.
type OrchestratorContainer struct {
	ContainerID string
	RunID       string
	State       string
}
