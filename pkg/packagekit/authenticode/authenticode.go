// Package authenticode is a light wrapper around signing code under
// windows, and around finding the certificate material to sign with.
//
// See
//
// https://docs.microsoft.com/en-us/dotnet/framework/tools/signtool-exe
package authenticode

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/kolide/msixkit/pkg/contexts/ctxlog"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

const redacted = "[REDACTED]"

// signtoolOptions are the options for how we call signtool.exe. These
// are *not* the tool options, but instead our own representation of
// the arguments.
type signtoolOptions struct {
	extraArgs       []string
	signtoolPath    string
	timestampServer string

	execCC func(context.Context, string, ...string) *exec.Cmd // Allows test overrides
}

type SigntoolOpt func(*signtoolOptions)

// WithExtraArgs set additional arguments for signtool. They are placed
// before the file being signed.
func WithExtraArgs(args []string) SigntoolOpt {
	return func(so *signtoolOptions) {
		so.extraArgs = args
	}
}

func WithSigntoolPath(path string) SigntoolOpt {
	return func(so *signtoolOptions) {
		so.signtoolPath = path
	}
}

// WithTimestampServer adds an RFC 3161 timestamp to the signature.
func WithTimestampServer(url string) SigntoolOpt {
	return func(so *signtoolOptions) {
		so.timestampServer = url
	}
}

// WithExecCC overrides how the signtool process is created.
func WithExecCC(fn func(context.Context, string, ...string) *exec.Cmd) SigntoolOpt {
	return func(so *signtoolOptions) {
		so.execCC = fn
	}
}

// Sign signs file with the pfx in cred. The password never appears in
// logs or in returned errors.
func Sign(ctx context.Context, file string, cred *Credential, opts ...SigntoolOpt) error {
	ctx, span := trace.StartSpan(ctx, "authenticode.Sign")
	defer span.End()

	if cred == nil {
		return errors.New("no signing credential")
	}

	so := &signtoolOptions{
		signtoolPath: "signtool.exe",
		execCC:       exec.CommandContext,
	}

	for _, opt := range opts {
		opt(so)
	}

	args := []string{
		"sign",
		"/fd", "SHA256",
		"/f", cred.PfxPath,
		"/p", cred.password,
	}

	if so.timestampServer != "" {
		args = append(args, "/tr", so.timestampServer, "/td", "SHA256")
	}

	args = append(args, so.extraArgs...)
	args = append(args, file)

	if _, err := so.execOut(ctx, so.signtoolPath, args...); err != nil {
		return errors.Wrap(err, "calling signtool")
	}

	return nil
}

func (so *signtoolOptions) execOut(ctx context.Context, argv0 string, args ...string) (string, error) {
	logger := ctxlog.FromContext(ctx)

	cmd := so.execCC(ctx, argv0, args...)

	safeArgs := RedactArgs(args)

	level.Debug(logger).Log(
		"msg", "execing",
		"cmd", strings.Join(append([]string{argv0}, safeArgs...), " "),
	)

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.Stdout, cmd.Stderr = stdout, stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "run command %s %v, stderr=%s", argv0, safeArgs, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// RedactArgs returns a copy of a signtool argument list with the value
// following any /p flag replaced.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)

	for i := 0; i < len(out)-1; i++ {
		if strings.EqualFold(out[i], "/p") || strings.EqualFold(out[i], "-p") {
			out[i+1] = redacted
			i++
		}
	}
	return out
}
