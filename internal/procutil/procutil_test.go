package procutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSeparatesStdoutAndStderr(t *testing.T) {
	res, err := Run(context.Background(), "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunCapturesNonZeroExitCode(t *testing.T) {
	res, err := Run(context.Background(), "sh", "-c", "exit 3")
	require.Error(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestRunStreamingInvokesCallbackPerLine(t *testing.T) {
	var lines []string
	res, err := RunStreaming(context.Background(), func(line string) {
		lines = append(lines, line)
	}, "sh", "-c", "printf 'one\\ntwo\\nthree\\n'")

	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, lines)
	assert.Equal(t, "one\ntwo\nthree\n", string(res.Stdout))
}

func TestRunStreamingCapturesStderrSeparately(t *testing.T) {
	res, err := RunStreaming(context.Background(), nil, "sh", "-c", "echo boom >&2; exit 1")
	require.Error(t, err)
	assert.Equal(t, "boom\n", string(res.Stderr))
}
