package config

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError contains details about what failed validation.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config.%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// validateConfig checks all config values for validity.
// Returns nil if valid, or joined errors for all validation failures.
func validateConfig(cfg *Config) error {
	var errs []error

	if cfg.Server.MaxSlots < 1 {
		errs = append(errs, &ValidationError{
			Field:   "server.max_slots",
			Value:   cfg.Server.MaxSlots,
			Message: "must be at least 1",
		})
	}
	if _, err := time.ParseDuration(cfg.Server.ShutdownTimeout); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "server.shutdown_timeout",
			Value:   cfg.Server.ShutdownTimeout,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}

	if cfg.Queue.Capacity < 1 {
		errs = append(errs, &ValidationError{
			Field:   "queue.capacity",
			Value:   cfg.Queue.Capacity,
			Message: "must be at least 1",
		})
	}

	if cfg.Workspace.StorageRoot == "" {
		errs = append(errs, &ValidationError{
			Field:   "workspace.storage_root",
			Value:   cfg.Workspace.StorageRoot,
			Message: "must not be empty",
		})
	}
	if cfg.Workspace.WorkspacesRoot == "" {
		errs = append(errs, &ValidationError{
			Field:   "workspace.workspaces_root",
			Value:   cfg.Workspace.WorkspacesRoot,
			Message: "must not be empty",
		})
	}

	if cfg.Container.CPULimit <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "container.cpu_limit",
			Value:   cfg.Container.CPULimit,
			Message: "must be positive",
		})
	}

	if cfg.Harness.ClaudeCommand == "" {
		errs = append(errs, &ValidationError{
			Field:   "harness.claude_command",
			Value:   cfg.Harness.ClaudeCommand,
			Message: "must not be empty",
		})
	}
	if cfg.Harness.CodexCommand == "" {
		errs = append(errs, &ValidationError{
			Field:   "harness.codex_command",
			Value:   cfg.Harness.CodexCommand,
			Message: "must not be empty",
		})
	}
	if _, err := time.ParseDuration(cfg.Harness.DefaultTimeout); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "harness.default_timeout",
			Value:   cfg.Harness.DefaultTimeout,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}

	if _, err := time.ParseDuration(cfg.Reconciler.Interval); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "reconciler.interval",
			Value:   cfg.Reconciler.Interval,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}

	for field, val := range map[string]string{
		"heartbeat.warmup_interval":     cfg.Heartbeat.WarmupInterval,
		"heartbeat.interval":            cfg.Heartbeat.Interval,
		"heartbeat.staleness_threshold": cfg.Heartbeat.StalenessThreshold,
		"heartbeat.ping_timeout":        cfg.Heartbeat.PingTimeout,
	} {
		if _, err := time.ParseDuration(val); err != nil {
			errs = append(errs, &ValidationError{
				Field:   field,
				Value:   val,
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, &ValidationError{
			Field:   "log_level",
			Value:   cfg.LogLevel,
			Message: "must be one of: debug, info, warn, error",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
