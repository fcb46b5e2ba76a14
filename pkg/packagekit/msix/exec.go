package msix

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/kolide/msixkit/pkg/contexts/ctxlog"
)

// ExecError is a non-zero exit from one of the SDK tools. Stderr is the
// tool's own explanation.
type ExecError struct {
	Tool   string
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("run command %s %v: %s\nstdout=%s\nstderr=%s",
		filepath.Base(e.Tool), e.Args, e.Err, e.Stdout, e.Stderr)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

func (p *Packager) execOut(ctx context.Context, argv0 string, args ...string) (string, error) {
	logger := ctxlog.FromContext(ctx)

	cmd := p.execCC(ctx, argv0, args...)

	level.Debug(logger).Log(
		"msg", "execing",
		"cmd", strings.Join(append([]string{argv0}, args...), " "),
	)

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.Stdout, cmd.Stderr = stdout, stderr
	if err := cmd.Run(); err != nil {
		return "", &ExecError{
			Tool:   argv0,
			Args:   args,
			Stdout: strings.TrimSpace(stdout.String()),
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}
