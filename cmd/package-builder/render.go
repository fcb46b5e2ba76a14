package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/kolide/kit/logutil"
	"github.com/kolide/msixkit/pkg/packagekit/msix"
	"github.com/kolide/msixkit/pkg/packaging"
	"github.com/peterbourgon/ff/v3"
	"github.com/pkg/errors"
)

// runRender prints the manifest a make would produce, without staging
// anything. Useful when writing a custom template.
func runRender(args []string) error {
	flagset := flag.NewFlagSet("package-builder render", flag.ExitOnError)
	var (
		_ = flagset.String(
			"config",
			"",
			"config file to read flags from (optional)",
		)
		flMetadata = flagset.String(
			"metadata",
			"msix.yaml",
			"the app metadata file",
		)
		flArch = flagset.String(
			"arch",
			runtime.GOARCH,
			"the app's architecture, as GOARCH or a windows name",
		)
		flTemplate = flagset.String(
			"template",
			"",
			"an AppxManifest.xml template. Defaults to the bundled one",
		)
		flOut = flagset.String(
			"out",
			"",
			"write the manifest here, instead of stdout",
		)
	)

	flagset.Usage = usageFor(flagset, "package-builder render [flags]")
	if err := ff.Parse(flagset, args, ffOpts()...); err != nil {
		logutil.Fatal(logutil.NewCLILogger(true), "msg", "error parsing flags", "err", err)
	}

	md, err := packaging.LoadMetadata(*flMetadata)
	if err != nil {
		return err
	}

	arch, err := packaging.ArchFromString(*flArch)
	if err != nil {
		return err
	}

	return render(os.Stdout, md, arch, *flTemplate, *flOut)
}

func render(stdout io.Writer, md *packaging.Metadata, arch packaging.Arch, templatePath, outPath string) error {
	fields, err := md.ManifestFields(arch)
	if err != nil {
		return err
	}

	if err := fields.Validate(); err != nil {
		return err
	}

	tmpl, err := msix.LoadTemplate(templatePath)
	if err != nil {
		return err
	}

	rendered := msix.RenderManifest(tmpl, fields.Context())

	if outPath == "" {
		_, err := fmt.Fprint(stdout, rendered)
		return err
	}

	if err := os.WriteFile(outPath, []byte(rendered), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", outPath)
	}

	return nil
}
