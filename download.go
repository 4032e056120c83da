package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// CommandDownloader invokes an external download tool (yt-dlp, youtube-dl)
// once per video id, running it in a fixed working directory so the tool
// drops its files where the user expects them.
type CommandDownloader struct {
	command string
	dir     string
}

// NewCommandDownloader creates a downloader around the given command.
func NewCommandDownloader(command, dir string) *CommandDownloader {
	return &CommandDownloader{command: command, dir: dir}
}

// Download runs the external tool for one video. A non-zero exit status is
// reported as an error. The tool's own output passes through to the
// terminal.
func (d *CommandDownloader) Download(ctx context.Context, videoID string) error {
	cmd := exec.CommandContext(ctx, d.command, videoID)
	cmd.Dir = d.dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", d.command, videoID, err)
	}
	return nil
}
