package msix

import (
	"context"
	"os"

	"github.com/go-kit/kit/log/level"
	"github.com/kolide/msixkit/pkg/contexts/ctxlog"
	"github.com/kolide/msixkit/pkg/packagekit/sdktools"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// indexResources invokes makepri. This builds resources.pri, the
// index windows uses to find the visual assets. It's two steps, first
// generating a config, then the index itself. See
// https://learn.microsoft.com/en-us/windows/uwp/app-resources/makepri-exe-command-options
func (p *Packager) indexResources(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "msix.indexResources")
	defer span.End()

	if !p.platform.IsTargetPlatform() {
		level.Info(ctxlog.FromContext(ctx)).Log("msg", "not on windows, skipping makepri")
		return nil
	}

	makepri, err := p.locator.Require(sdktools.MakePri, p.toolArch)
	if err != nil {
		return err
	}

	// makepri prompts before overwriting its config
	if err := removeIfExists(p.layout.PriConfigFile); err != nil {
		return err
	}

	if _, err := p.execOut(ctx, makepri,
		"createconfig",
		"/cf", p.layout.PriConfigFile,
		"/dq", ResourceLanguage,
	); err != nil {
		return errors.Wrap(err, "makepri createconfig")
	}

	if _, err := p.execOut(ctx, makepri,
		"new",
		"/pr", p.layout.AppDirectory,
		"/cf", p.layout.PriConfigFile,
		"/of", p.layout.PriFile,
	); err != nil {
		return errors.Wrap(err, "makepri new")
	}

	return nil
}

// pack invokes makeappx to bundle the staged app directory. The output
// is removed first, rather than trusting makeappx's overwrite flag.
func (p *Packager) pack(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "msix.pack")
	defer span.End()

	if !p.platform.IsTargetPlatform() {
		level.Info(ctxlog.FromContext(ctx)).Log("msg", "not on windows, skipping makeappx")
		return nil
	}

	makeappx, err := p.locator.Require(sdktools.MakeAppx, p.toolArch)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir(p.layout), 0755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	if err := removeIfExists(p.layout.OutputPackageFile); err != nil {
		return err
	}

	if _, err := p.execOut(ctx, makeappx,
		"pack",
		"/d", p.layout.AppDirectory,
		"/p", p.layout.OutputPackageFile,
		"/o",
	); err != nil {
		return errors.Wrap(err, "makeappx pack")
	}

	return nil
}

func removeIfExists(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return errors.Wrapf(err, "removing %s", path)
	}
	return nil
}
