package msix

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/go-kit/kit/log/level"
	"github.com/kolide/kit/fsutil"
	"github.com/kolide/msixkit/pkg/contexts/ctxlog"
	"github.com/kolide/msixkit/pkg/packagekit"
	"github.com/kolide/msixkit/pkg/packagekit/authenticode"
	"github.com/kolide/msixkit/pkg/packagekit/sdktools"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

type Packager struct {
	layout       Layout
	fields       ManifestFields
	templatePath string
	iconPath     string
	toolArch     string
	skipPri      bool

	locator      *sdktools.Locator
	resolverOpts []authenticode.ResolverOpt
	signOpts     []authenticode.SigntoolOpt
	platform     packagekit.Platform

	execCC func(context.Context, string, ...string) *exec.Cmd // Allows test overrides
}

type Opt func(*Packager)

// WithTemplate uses a manifest template file instead of the bundled
// one.
func WithTemplate(path string) Opt {
	return func(p *Packager) {
		p.templatePath = path
	}
}

// WithIcon sets the raster image the visual assets are scaled from.
func WithIcon(path string) Opt {
	return func(p *Packager) {
		p.iconPath = path
	}
}

// WithToolArch selects which architecture of the SDK tools to run. This
// is the build host's architecture, not the package's.
func WithToolArch(arch string) Opt {
	return func(p *Packager) {
		p.toolArch = arch
	}
}

func WithLocator(l *sdktools.Locator) Opt {
	return func(p *Packager) {
		p.locator = l
	}
}

// WithSigning configures where signing material comes from. Without
// it, only the environment is consulted.
func WithSigning(opts ...authenticode.ResolverOpt) Opt {
	return func(p *Packager) {
		p.resolverOpts = append(p.resolverOpts, opts...)
	}
}

func WithSigntoolOpts(opts ...authenticode.SigntoolOpt) Opt {
	return func(p *Packager) {
		p.signOpts = append(p.signOpts, opts...)
	}
}

func WithPlatform(platform packagekit.Platform) Opt {
	return func(p *Packager) {
		p.platform = platform
	}
}

func WithoutResourceIndex() Opt {
	return func(p *Packager) {
		p.skipPri = true
	}
}

func WithExecCC(fn func(context.Context, string, ...string) *exec.Cmd) Opt {
	return func(p *Packager) {
		p.execCC = fn
	}
}

func New(layout Layout, fields ManifestFields, opts ...Opt) *Packager {
	p := &Packager{
		layout:   layout,
		fields:   fields,
		toolArch: "x64",
		platform: packagekit.HostPlatform{},
		execCC:   exec.CommandContext,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.locator == nil {
		p.locator = sdktools.New()
	}

	return p
}

// Package runs every step, in order, stopping at the first failure.
// The resulting package path, and whether it was signed, are recorded
// in ctx if it was set up with packagekit.InitContext.
func (p *Packager) Package(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "msix.Package")
	defer span.End()

	ctx = ctxlog.With(ctx, "package", p.layout.PackageName)
	logger := ctxlog.FromContext(ctx)

	if err := p.fields.Validate(); err != nil {
		return err
	}

	tmpl, err := LoadTemplate(p.templatePath)
	if err != nil {
		return err
	}

	if err := p.stageApp(ctx); err != nil {
		return errors.Wrap(err, "staging app")
	}

	if err := p.stageIcons(ctx); err != nil {
		return errors.Wrap(err, "staging icons")
	}

	if err := p.writeManifest(ctx, tmpl); err != nil {
		return errors.Wrap(err, "writing manifest")
	}

	if !p.skipPri {
		if err := p.indexResources(ctx); err != nil {
			return errors.Wrap(err, "indexing resources")
		}
	}

	if err := p.pack(ctx); err != nil {
		return errors.Wrap(err, "packing")
	}

	signed, err := p.sign(ctx)
	if err != nil {
		return errors.Wrap(err, "signing")
	}

	if !p.platform.IsTargetPlatform() {
		level.Info(logger).Log(
			"msg", "staged package contents, native packaging skipped on this platform",
			"app_dir", p.layout.AppDirectory,
		)
		return nil
	}

	packagekit.SetInContext(ctx, packagekit.ContextPackagePathKey, p.layout.OutputPackageFile)
	packagekit.SetInContext(ctx, packagekit.ContextPackageVersionKey, p.fields.Version)
	packagekit.SetInContext(ctx, packagekit.ContextSignedKey, strconv.FormatBool(signed))

	level.Info(logger).Log(
		"msg", "built package",
		"path", p.layout.OutputPackageFile,
		"signed", signed,
	)

	return nil
}

// stageApp copies the prebuilt app into a fresh staging directory.
func (p *Packager) stageApp(ctx context.Context) error {
	_, span := trace.StartSpan(ctx, "msix.stageApp")
	defer span.End()

	if err := packagekit.IsDirectory(p.layout.SourceDirectory); err != nil {
		return err
	}

	if err := p.layout.Validate(); err != nil {
		return err
	}

	if err := removeIfExists(p.layout.AppDirectory); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p.layout.AppDirectory), 0755); err != nil {
		return errors.Wrap(err, "creating build directory")
	}

	if err := fsutil.CopyDir(p.layout.SourceDirectory, p.layout.AppDirectory); err != nil {
		return errors.Wrapf(err, "copying %s", p.layout.SourceDirectory)
	}

	return nil
}

func (p *Packager) stageIcons(ctx context.Context) error {
	_, span := trace.StartSpan(ctx, "msix.stageIcons")
	defer span.End()

	return StageIcons(p.layout.ResourcesDirectory, p.iconPath, p.fields.BackgroundColor)
}

func (p *Packager) writeManifest(ctx context.Context, tmpl string) error {
	_, span := trace.StartSpan(ctx, "msix.writeManifest")
	defer span.End()

	if err := removeIfExists(p.layout.ManifestFile); err != nil {
		return err
	}

	rendered := RenderManifest(tmpl, p.fields.Context())

	if err := os.WriteFile(p.layout.ManifestFile, []byte(rendered), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", p.layout.ManifestFile)
	}

	return nil
}

// sign resolves signing material, and if there is any, signs the
// package. It returns whether the package was signed. A temporary pfx
// is removed however signing goes.
func (p *Packager) sign(ctx context.Context) (bool, error) {
	ctx, span := trace.StartSpan(ctx, "msix.sign")
	defer span.End()

	logger := ctxlog.FromContext(ctx)

	if !p.platform.IsTargetPlatform() {
		level.Info(logger).Log("msg", "not on windows, skipping signing")
		return false, nil
	}

	resolverOpts := append([]authenticode.ResolverOpt{authenticode.WithTempDir(p.layout.TempDirectory)}, p.resolverOpts...)
	cred, err := authenticode.NewResolver(resolverOpts...).Resolve(ctx)
	if err != nil {
		return false, err
	}

	if cred == nil {
		level.Info(logger).Log("msg", "no signing certificate configured, package is unsigned")
		return false, nil
	}
	defer cred.Release(ctx)

	cert, err := authenticode.InspectPfx(cred)
	if err != nil {
		return false, err
	}

	if !authenticode.PublisherMatches(cert, p.fields.Publisher) {
		level.Warn(logger).Log(
			"msg", "certificate subject does not match manifest publisher, windows will refuse to install this package",
			"subject", cert.Subject.String(),
			"publisher", p.fields.Publisher,
		)
	}

	signtool, err := p.locator.Require(sdktools.SignTool, p.toolArch)
	if err != nil {
		return false, err
	}

	signOpts := append([]authenticode.SigntoolOpt{
		authenticode.WithSigntoolPath(signtool),
		authenticode.WithExecCC(p.execCC),
	}, p.signOpts...)

	if err := authenticode.Sign(ctx, p.layout.OutputPackageFile, cred, signOpts...); err != nil {
		return false, err
	}

	packagekit.SetInContext(ctx, packagekit.ContextSignerSubjectKey, cert.Subject.String())

	return true, nil
}

func outputDir(l Layout) string {
	return filepath.Dir(l.OutputPackageFile)
}
