package packaging

import (
	"context"
	"os/exec"
	"path/filepath"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/msixkit/pkg/contexts/ctxlog"
	"github.com/kolide/msixkit/pkg/packagekit"
	"github.com/kolide/msixkit/pkg/packagekit/authenticode"
	"github.com/kolide/msixkit/pkg/packagekit/msix"
	"github.com/kolide/msixkit/pkg/packagekit/sdktools"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// Options configures a single packaging run.
type Options struct {
	Metadata *Metadata

	// PackageName is consulted before the metadata convention, and the
	// scan of DistDir.
	PackageName PackageNameProvider

	// SourceDir is the prebuilt app. Defaults to DistDir/<name>.
	SourceDir string
	DistDir   string
	BuildDir  string
	OutputDir string

	Arch     Arch
	ToolArch Arch

	SDKRoot         string
	TemplatePath    string
	SkipPri         bool
	PfxPath         string
	PfxPassword     string
	TimestampServer string

	// DetectVersion runs the app to learn its version, when the
	// metadata has none.
	DetectVersion bool

	Platform packagekit.Platform
	ExecCC   func(context.Context, string, ...string) *exec.Cmd

	// LookupEnv is where signing looks for an environment supplied
	// pfx. Defaults to the process environment.
	LookupEnv func(string) (string, bool)
}

// Build resolves everything a run needs, and runs the msix pipeline.
// Results are stored in ctx, see packagekit.InitContext.
func Build(ctx context.Context, po Options) error {
	ctx, span := trace.StartSpan(ctx, "packaging.Build")
	defer span.End()

	logger := log.With(ctxlog.FromContext(ctx), "method", "packaging.Build")

	if po.Metadata == nil {
		return errors.New("no metadata")
	}
	md := *po.Metadata

	layout, err := po.Layout()
	if err != nil {
		return err
	}

	if md.Version == "" {
		if err := packagekit.IsDirectory(layout.SourceDirectory); err != nil {
			return err
		}
		if !po.DetectVersion {
			return errors.New("metadata has no version, and detection is disabled")
		}

		platform := po.Platform
		if platform == nil {
			platform = packagekit.HostPlatform{}
		}
		if !platform.IsTargetPlatform() {
			level.Info(logger).Log("msg", "version detection runs the app, skipped on this platform")
			return errors.New("metadata has no version, and it can't be detected on this platform, set one explicitly")
		}

		md.Version, err = DetectVersion(ctx, filepath.Join(layout.SourceDirectory, md.Executable), po.ExecCC)
		if err != nil {
			return errors.Wrap(err, "detecting version")
		}
	}

	arch := po.Arch
	if arch == "" {
		arch = X64
	}

	fields, err := md.ManifestFields(arch)
	if err != nil {
		return errors.Wrap(err, "formatting version")
	}

	level.Debug(logger).Log(
		"msg", "packaging",
		"name", layout.PackageName,
		"version", fields.Version,
		"arch", arch,
		"source", layout.SourceDirectory,
	)

	return msix.New(layout, fields, po.packagerOpts(md)...).Package(ctx)
}

// Layout resolves the package name, and derives the run's paths.
func (po Options) Layout() (msix.Layout, error) {
	providers := FirstOf{po.PackageName, MetadataName{Metadata: po.Metadata}, DirectoryScan{Dir: po.DistDir}}

	name, ok := providers.ResolvePackageName()
	if !ok {
		return msix.Layout{}, errors.New("unable to determine package name, set one explicitly")
	}

	sourceDir := po.SourceDir
	if sourceDir == "" {
		if po.DistDir == "" {
			return msix.Layout{}, errors.New("need either a source directory or a dist directory")
		}
		sourceDir = filepath.Join(po.DistDir, name)
	}

	buildDir := po.BuildDir
	if buildDir == "" {
		buildDir = "build"
	}

	outputDir := po.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(buildDir, "out")
	}

	layout := msix.NewLayout(name, sourceDir, buildDir, outputDir)
	if err := layout.Validate(); err != nil {
		return msix.Layout{}, err
	}

	return layout, nil
}

func (po Options) packagerOpts(md Metadata) []msix.Opt {
	toolArch := po.ToolArch
	if toolArch == "" {
		toolArch = HostToolArch()
	}

	var locatorOpts []sdktools.Opt
	if po.SDKRoot != "" {
		locatorOpts = append(locatorOpts, sdktools.WithRoot(po.SDKRoot))
	}

	var resolverOpts []authenticode.ResolverOpt
	if po.PfxPath != "" {
		resolverOpts = append(resolverOpts, authenticode.WithPfxFile(po.PfxPath))
	}
	if po.PfxPassword != "" {
		resolverOpts = append(resolverOpts, authenticode.WithPassword(po.PfxPassword))
	}
	if po.LookupEnv != nil {
		resolverOpts = append(resolverOpts, authenticode.WithLookupEnv(po.LookupEnv))
	}

	var signOpts []authenticode.SigntoolOpt
	if po.TimestampServer != "" {
		signOpts = append(signOpts, authenticode.WithTimestampServer(po.TimestampServer))
	}

	opts := []msix.Opt{
		msix.WithToolArch(toolArch.String()),
		msix.WithLocator(sdktools.New(locatorOpts...)),
		msix.WithSigning(resolverOpts...),
		msix.WithSigntoolOpts(signOpts...),
		msix.WithTemplate(po.TemplatePath),
		msix.WithIcon(md.Icon),
	}

	if po.SkipPri {
		opts = append(opts, msix.WithoutResourceIndex())
	}
	if po.Platform != nil {
		opts = append(opts, msix.WithPlatform(po.Platform))
	}
	if po.ExecCC != nil {
		opts = append(opts, msix.WithExecCC(po.ExecCC))
	}

	return opts
}
