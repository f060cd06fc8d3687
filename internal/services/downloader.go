package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"tidalsync/internal/shared"
)

// ExecDownloader implements [Downloader] by shelling out to an external
// download command (e.g. tidal-dl). The command is invoked per track as
//
//	<command> <args...> <tidalID> <targetPath>
//
// and must leave the audio at targetPath on success.
type ExecDownloader struct {
	command string
	args    []string
}

// NewExecDownloader creates an ExecDownloader for the given command.
// Returns an error when the command cannot be found on PATH.
func NewExecDownloader(command string, args []string) (*ExecDownloader, error) {
	if command == "" {
		return nil, fmt.Errorf("%w: no downloader command configured", shared.ErrServiceUnavailable)
	}
	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", shared.ErrServiceUnavailable, command)
	}

	return &ExecDownloader{command: command, args: args}, nil
}

// DownloadTrack invokes the external command and verifies the target exists afterwards.
func (d *ExecDownloader) DownloadTrack(ctx context.Context, tidalID, targetPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create target directory: %v", shared.ErrDownloadFailed, err)
	}

	args := append(append([]string{}, d.args...), tidalID, targetPath)
	cmd := exec.CommandContext(ctx, d.command, args...)

	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%w: %s: %v: %s", shared.ErrDownloadFailed, d.command, err, truncateOutput(output))
	}

	if _, err := os.Stat(targetPath); err != nil {
		return "", fmt.Errorf("%w: %s reported success but %s does not exist", shared.ErrDownloadFailed, d.command, targetPath)
	}

	return targetPath, nil
}

// truncateOutput keeps error messages readable when the tool dumps its whole log.
func truncateOutput(output []byte) string {
	const maxLen = 512
	s := string(output)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
