// Package procutil wraps subprocess execution for the external tools the
// gateway bot shells out to (ffmpeg, ffprobe, yt-dlp, git, pip, a raw
// owner shell command). Stdout and stderr are captured on separate pipes
// and never merged silently, so callers can tell tool diagnostics apart
// from tool output; RunCombined is the one deliberate exception, for the
// owner shell where terminal-style interleaving is the point.
package procutil

import (
	"bytes"
	"context"
	"os/exec"

	"gatewaybot/internal/logger"
)

// Result holds a finished process's captured output.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Run executes name with args under ctx and waits for it to finish,
// capturing stdout and stderr independently.
func Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		logger.Warnf("procutil: %s %v failed: %v", name, args, err)
		return res, err
	}
	return res, nil
}

// RunCombined executes name with args and returns stdout and stderr
// interleaved in Result.Stdout, the way a terminal would show them.
func RunCombined(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	out, err := cmd.CombinedOutput()
	res := Result{Stdout: out}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		logger.Warnf("procutil: %s %v failed: %v", name, args, err)
	}
	return res, err
}

// ProgressFunc receives one stdout line at a time from RunStreaming.
type ProgressFunc func(line string)

// RunStreaming runs name with args, invoking onStdout for every stdout
// line as it arrives (useful for ffmpeg/yt-dlp progress parsing) while
// still capturing stderr in full for error reporting on failure.
func RunStreaming(ctx context.Context, onStdout ProgressFunc, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{}, err
	}

	var stdout bytes.Buffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 4096)
		var partial []byte
		for {
			n, readErr := stdoutPipe.Read(buf)
			if n > 0 {
				stdout.Write(buf[:n])
				partial = append(partial, buf[:n]...)
				for {
					idx := bytes.IndexByte(partial, '\n')
					if idx < 0 {
						break
					}
					if onStdout != nil {
						onStdout(string(partial[:idx]))
					}
					partial = partial[idx+1:]
				}
			}
			if readErr != nil {
				return
			}
		}
	}()

	<-done
	err = cmd.Wait()

	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		logger.Warnf("procutil: %s %v failed: %v", name, args, err)
	}
	return res, err
}
