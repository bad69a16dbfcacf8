package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"demostudio/internal/services"
)

// Command describes one ffmpeg invocation.
type Command struct {
	// Binary overrides the ffmpeg executable name. Empty means "ffmpeg".
	Binary string
	// Args are the full argument list excluding the binary itself.
	Args []string
	// InputDuration, when positive, enables percent progress reporting.
	InputDuration float64
	// OnProgress receives encode progress in the range [0, 100].
	OnProgress func(percent float64)
}

// Runner executes ffmpeg commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs ffmpeg as a subprocess.
type ExecRunner struct{}

var _ Runner = ExecRunner{}

// Run executes the command, streaming progress from stdout when requested.
// The last stderr lines are folded into the error on failure since ffmpeg
// writes its diagnostics there.
func (ExecRunner) Run(ctx context.Context, cmd Command) error {
	binary := strings.TrimSpace(cmd.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}

	args := cmd.Args
	reportProgress := cmd.OnProgress != nil && cmd.InputDuration > 0
	if reportProgress {
		args = append([]string{"-progress", "pipe:1", "-nostats"}, args...)
	}

	proc := exec.CommandContext(ctx, binary, args...)

	var stderrTail tailBuffer
	proc.Stderr = &stderrTail

	if reportProgress {
		stdout, err := proc.StdoutPipe()
		if err != nil {
			return fmt.Errorf("ffmpeg stdout pipe: %w", err)
		}
		if err := proc.Start(); err != nil {
			return services.Wrap(services.ErrExternalTool, "ffmpeg", "run", "start ffmpeg", err)
		}

		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if percent, ok := parseProgressLine(scanner.Text(), cmd.InputDuration); ok {
				cmd.OnProgress(percent)
			}
		}
		if err := proc.Wait(); err != nil {
			return runError(ctx, err, stderrTail.String())
		}
		cmd.OnProgress(100)
		return nil
	}

	if err := proc.Run(); err != nil {
		return runError(ctx, err, stderrTail.String())
	}
	return nil
}

func runError(ctx context.Context, err error, stderr string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		detail = "no diagnostics"
	}
	return services.Wrap(services.ErrExternalTool, "ffmpeg", "run", detail, err)
}

// tailBuffer keeps the last chunk of writes so long encodes do not hold their
// full stderr in memory.
type tailBuffer struct {
	data []byte
}

const tailLimit = 8 * 1024

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if len(b.data) > tailLimit {
		b.data = b.data[len(b.data)-tailLimit:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.data)
}
