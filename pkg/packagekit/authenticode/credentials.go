package authenticode

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/msixkit/pkg/contexts/ctxlog"
	"github.com/pkg/errors"
)

const (
	DefaultPfxBase64EnvVar   = "MSIX_SIGNING_PFX_BASE64"
	DefaultPfxPasswordEnvVar = "MSIX_SIGNING_PFX_PASSWORD"
)

// ConfigError is a fatal problem with the signing configuration. It
// names the input at fault, and how to fix it.
type ConfigError struct {
	Input       string
	Problem     string
	Remediation string
	Err         error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("signing configuration: %s: %s", e.Input, e.Problem)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	if e.Remediation != "" {
		msg = fmt.Sprintf("%s. %s", msg, e.Remediation)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Credential is the pfx material handed to signtool. Temporary
// credentials were materialized from the environment, and are removed
// by Release.
type Credential struct {
	PfxPath   string
	Temporary bool

	password string
}

func (c *Credential) Password() string {
	return c.password
}

func (c *Credential) String() string {
	return fmt.Sprintf("pfx=%s temporary=%t password=%s", c.PfxPath, c.Temporary, redacted)
}

// Release removes a temporary pfx. It is safe to call on a nil or
// non-temporary credential. Failures are only logged, the build's temp
// directory is cleaned eventually anyway.
func (c *Credential) Release(ctx context.Context) {
	if c == nil || !c.Temporary {
		return
	}

	if err := os.Remove(c.PfxPath); err != nil && !os.IsNotExist(err) {
		level.Warn(ctxlog.FromContext(ctx)).Log(
			"msg", "unable to remove temporary pfx",
			"path", c.PfxPath,
			"err", err,
		)
	}
}

type Resolver struct {
	pfxPath        string
	password       string
	tempDir        string
	pfxEnvVar      string
	passwordEnvVar string
	lookupEnv      func(string) (string, bool)
}

type ResolverOpt func(*Resolver)

// WithPfxFile sets an explicit pfx file. It takes precedence over the
// environment.
func WithPfxFile(path string) ResolverOpt {
	return func(r *Resolver) {
		r.pfxPath = path
	}
}

func WithPassword(password string) ResolverOpt {
	return func(r *Resolver) {
		r.password = password
	}
}

// WithTempDir sets where an environment supplied pfx is written.
func WithTempDir(dir string) ResolverOpt {
	return func(r *Resolver) {
		r.tempDir = dir
	}
}

func WithEnvVars(pfxBase64, password string) ResolverOpt {
	return func(r *Resolver) {
		r.pfxEnvVar = pfxBase64
		r.passwordEnvVar = password
	}
}

func WithLookupEnv(fn func(string) (string, bool)) ResolverOpt {
	return func(r *Resolver) {
		r.lookupEnv = fn
	}
}

func NewResolver(opts ...ResolverOpt) *Resolver {
	r := &Resolver{
		pfxEnvVar:      DefaultPfxBase64EnvVar,
		passwordEnvVar: DefaultPfxPasswordEnvVar,
		lookupEnv:      os.LookupEnv,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve decides whether, and with what, to sign. A nil credential
// and nil error means signing isn't configured, which is not an
// error. Temporary credentials must be released by the caller.
//
// Precedence is:
//  1. an explicit pfx file that exists
//  2. a base64 pfx in the environment
//  3. nothing, don't sign
//
// An explicit pfx that is missing is only forgiven when the
// environment can stand in for it.
func (r *Resolver) Resolve(ctx context.Context) (*Credential, error) {
	logger := log.With(ctxlog.FromContext(ctx), "method", "authenticode.Resolve")

	if r.pfxPath != "" {
		info, err := os.Stat(r.pfxPath)
		switch {
		case err == nil && !info.IsDir():
			password, err := r.resolvePassword()
			if err != nil {
				return nil, err
			}
			level.Debug(logger).Log("msg", "signing with configured pfx", "path", r.pfxPath)
			return &Credential{PfxPath: r.pfxPath, password: password}, nil

		case !r.hasEnvPfx():
			return nil, &ConfigError{
				Input:       r.pfxPath,
				Problem:     "configured pfx file does not exist",
				Remediation: fmt.Sprintf("Fix the pfx path, or remove it and supply the certificate base64 encoded in %s", r.pfxEnvVar),
				Err:         err,
			}
		}

		level.Warn(logger).Log(
			"msg", "configured pfx missing, falling back to environment",
			"path", r.pfxPath,
			"env", r.pfxEnvVar,
		)
	}

	if !r.hasEnvPfx() {
		level.Debug(logger).Log("msg", "no signing certificate configured, will not sign")
		return nil, nil
	}

	encoded, _ := r.lookupEnv(r.pfxEnvVar)
	pfxData, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, &ConfigError{
			Input:       r.pfxEnvVar,
			Problem:     "malformed base64",
			Remediation: "Encode the pfx with standard base64, eg: base64 -w0 cert.pfx",
			Err:         err,
		}
	}

	password, err := r.resolvePassword()
	if err != nil {
		return nil, err
	}

	pfxPath, err := materialize(r.tempDir, pfxData)
	if err != nil {
		return nil, errors.Wrap(err, "writing temporary pfx")
	}

	level.Debug(logger).Log("msg", "signing with pfx from environment", "path", pfxPath)

	return &Credential{PfxPath: pfxPath, Temporary: true, password: password}, nil
}

func (r *Resolver) hasEnvPfx() bool {
	v, ok := r.lookupEnv(r.pfxEnvVar)
	return ok && strings.TrimSpace(v) != ""
}

func (r *Resolver) resolvePassword() (string, error) {
	if r.password != "" {
		return r.password, nil
	}

	if v, ok := r.lookupEnv(r.passwordEnvVar); ok && v != "" {
		return v, nil
	}

	return "", &ConfigError{
		Input:       "pfx password",
		Problem:     "signing was requested but no password is set",
		Remediation: fmt.Sprintf("Set the password in the build configuration, or in %s", r.passwordEnvVar),
	}
}

func materialize(dir string, data []byte) (string, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return "", errors.Wrapf(err, "creating %s", dir)
		}
	}

	fh, err := os.CreateTemp(dir, "signing-*.pfx")
	if err != nil {
		return "", err
	}

	if _, err := fh.Write(data); err != nil {
		fh.Close()
		os.Remove(fh.Name())
		return "", err
	}

	if err := fh.Close(); err != nil {
		os.Remove(fh.Name())
		return "", err
	}

	return fh.Name(), nil
}
