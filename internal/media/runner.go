// Package media wraps the external audio tools: conversion, metadata probing,
// and waveform summaries.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandResult is the captured output of one process execution.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

func newCommandLog(name string, args []string, res CommandResult) CommandLog {
	return CommandLog{
		Command:  name,
		Args:     args,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
}

// ToolError reports a failed external tool invocation.
type ToolError struct {
	Tool       string
	Diagnostic string
	Log        CommandLog
	Err        error
}

// Error formats the tool failure with its diagnostic output.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	if e.Diagnostic == "" {
		return fmt.Sprintf("%s failed (exit=%d): %v", e.Tool, e.Log.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s failed (exit=%d): %s", e.Tool, e.Log.ExitCode, e.Diagnostic)
}

// Unwrap exposes the process error for errors.Is / errors.As.
func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// diagnostic picks the most useful text of a failed run.
func diagnostic(res CommandResult, err error) string {
	if msg := strings.TrimSpace(res.Stderr); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(res.Stdout); msg != "" {
		return msg
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
