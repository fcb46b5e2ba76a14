package packaging

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/msixkit/pkg/contexts/ctxlog"
	"github.com/pkg/errors"
)

// DetectVersion runs the app with `--version`, and takes the last word
// of the first line of output. That's how most cli tools, and `git
// describe` stamped builds, report themselves. This can't work when
// cross building.
func DetectVersion(ctx context.Context, executable string, execCC func(context.Context, string, ...string) *exec.Cmd) (string, error) {
	logger := log.With(ctxlog.FromContext(ctx), "method", "packaging.DetectVersion")
	level.Debug(logger).Log("msg", "attempting version autodetection", "executable", executable)

	if execCC == nil {
		execCC = exec.CommandContext
	}

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd := execCC(ctx, executable, "--version")
	cmd.Stdout, cmd.Stderr = stdout, stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "running %s --version, perhaps this is a cross build. stderr=%s",
			executable, strings.TrimSpace(stderr.String()))
	}

	firstLine := strings.SplitN(strings.TrimSpace(stdout.String()), "\n", 2)[0]
	words := strings.Fields(firstLine)
	if len(words) == 0 {
		return "", errors.Errorf("unable to parse version from %s", executable)
	}

	version := words[len(words)-1]
	level.Debug(logger).Log("msg", "detected version", "version", version)

	return version, nil
}
