package config

import "os"

// HarnessResolutionContext holds the inputs that can override which binary
// a harness runtime shells out to, highest precedence first.
type HarnessResolutionContext struct {
	// CLIClaudeCommand from a --claude-cmd flag, if the daemon is started
	// with one.
	CLIClaudeCommand string
	// CLICodexCommand from a --codex-cmd flag.
	CLICodexCommand string
}

// ResolvedHarnessCommand is the final command selection and where it came
// from, useful for startup logging.
type ResolvedHarnessCommand struct {
	Command string
	Source  string
}

// ResolveClaudeCommand determines the claude binary to invoke.
// Precedence (highest to lowest):
//  1. ctx.CLIClaudeCommand (--claude-cmd flag)
//  2. HARNESS_CLAUDE_CMD environment variable
//  3. config.harness.claude_command
//  4. DefaultClaudeCommand
func ResolveClaudeCommand(ctx HarnessResolutionContext, cfg *Config) ResolvedHarnessCommand {
	if ctx.CLIClaudeCommand != "" {
		return ResolvedHarnessCommand{Command: ctx.CLIClaudeCommand, Source: "cli:--claude-cmd"}
	}
	if v := os.Getenv("HARNESS_CLAUDE_CMD"); v != "" {
		return ResolvedHarnessCommand{Command: v, Source: "env:HARNESS_CLAUDE_CMD"}
	}
	if cfg != nil && cfg.Harness.ClaudeCommand != "" {
		return ResolvedHarnessCommand{Command: cfg.Harness.ClaudeCommand, Source: "config:harness.claude_command"}
	}
	return ResolvedHarnessCommand{Command: DefaultClaudeCommand, Source: "default"}
}

// ResolveCodexCommand determines the codex binary to invoke, mirroring
// ResolveClaudeCommand's precedence.
func ResolveCodexCommand(ctx HarnessResolutionContext, cfg *Config) ResolvedHarnessCommand {
	if ctx.CLICodexCommand != "" {
		return ResolvedHarnessCommand{Command: ctx.CLICodexCommand, Source: "cli:--codex-cmd"}
	}
	if v := os.Getenv("HARNESS_CODEX_CMD"); v != "" {
		return ResolvedHarnessCommand{Command: v, Source: "env:HARNESS_CODEX_CMD"}
	}
	if cfg != nil && cfg.Harness.CodexCommand != "" {
		return ResolvedHarnessCommand{Command: cfg.Harness.CodexCommand, Source: "config:harness.codex_command"}
	}
	return ResolvedHarnessCommand{Command: DefaultCodexCommand, Source: "default"}
}
