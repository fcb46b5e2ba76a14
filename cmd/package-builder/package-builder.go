package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/kit/env"
	"github.com/kolide/kit/logutil"
	"github.com/kolide/kit/version"
	"github.com/kolide/msixkit/pkg/contexts/ctxlog"
	"github.com/kolide/msixkit/pkg/packagekit"
	"github.com/kolide/msixkit/pkg/packaging"
	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v3"
	"github.com/pkg/errors"
)

const envPrefix = "MSIX"

func ffOpts() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix(envPrefix),
	}
}

func runVersion(args []string) error {
	version.PrintFull()
	return nil
}

func runMake(args []string) error {
	flagset := flag.NewFlagSet("package-builder make", flag.ExitOnError)
	var (
		flDebug = flagset.Bool(
			"debug",
			false,
			"enable debug logging",
		)
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
		flName = flagset.String(
			"name",
			"",
			"package name, used for build directories and the output file. Defaults to the metadata's package_name or display_name",
		)
		flSource = flagset.String(
			"source",
			"",
			"the prebuilt app directory. Defaults to <dist>/<name>",
		)
		flDist = flagset.String(
			"dist",
			"dist",
			"directory the app build writes to",
		)
		flBuild = flagset.String(
			"build",
			"build",
			"directory for intermediate files",
		)
		flOut = flagset.String(
			"out",
			"",
			"directory to write the package to. Defaults to <build>/out",
		)
		flArch = flagset.String(
			"arch",
			runtime.GOARCH,
			"the app's architecture, as GOARCH or a windows name",
		)
		flToolArch = flagset.String(
			"tool_arch",
			"",
			"which architecture of the SDK tools to run. Defaults to this machine's",
		)
		flSDKRoot = flagset.String(
			"sdk_root",
			env.String("WindowsSdkDir", ""),
			"the Windows SDK root. Defaults to a search of Program Files",
		)
		flTemplate = flagset.String(
			"template",
			"",
			"an AppxManifest.xml template. Defaults to the bundled one",
		)
		flSkipPri = flagset.Bool(
			"skip_pri",
			false,
			"don't build a resources.pri",
		)
		flDetectVersion = flagset.Bool(
			"detect_version",
			false,
			"run the app with --version when the metadata has no version",
		)
		flPfx = flagset.String(
			"pfx",
			"",
			"signing certificate. Without one, a base64 pfx is read from MSIX_SIGNING_PFX_BASE64",
		)
		flPfxPassword = flagset.String(
			"pfx_password",
			"",
			"signing certificate password. Defaults to MSIX_SIGNING_PFX_PASSWORD",
		)
		flTimestampURL = flagset.String(
			"timestamp_url",
			"",
			"RFC 3161 timestamp server used when signing",
		)
	)

	flagset.Usage = usageFor(flagset, "package-builder make [flags]")
	if err := ff.Parse(flagset, args, ffOpts()...); err != nil {
		logutil.Fatal(logutil.NewCLILogger(true), "msg", "error parsing flags", "err", err)
	}

	logger := logutil.NewCLILogger(*flDebug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = ctxlog.NewContext(ctx, logger)
	ctx = packagekit.InitContext(ctx)

	md, err := packaging.LoadMetadata(*flMetadata)
	if err != nil {
		return err
	}

	arch, err := packaging.ArchFromString(*flArch)
	if err != nil {
		return err
	}

	po := packaging.Options{
		Metadata:        md,
		PackageName:     packaging.StaticName(*flName),
		SourceDir:       *flSource,
		DistDir:         *flDist,
		BuildDir:        *flBuild,
		OutputDir:       *flOut,
		Arch:            arch,
		SDKRoot:         *flSDKRoot,
		TemplatePath:    *flTemplate,
		SkipPri:         *flSkipPri,
		DetectVersion:   *flDetectVersion,
		PfxPath:         *flPfx,
		PfxPassword:     *flPfxPassword,
		TimestampServer: *flTimestampURL,
	}

	if *flToolArch != "" {
		if po.ToolArch, err = packaging.ArchFromString(*flToolArch); err != nil {
			return errors.Wrap(err, "tool arch")
		}
	}

	var g run.Group
	g.Add(func() error {
		return packaging.Build(ctx, po)
	}, func(error) {
		cancel()
	})

	sl := newSignalListener(make(chan os.Signal, 1), cancel, logger)
	g.Add(sl.Execute, sl.Interrupt)

	if err := g.Run(); err != nil {
		return errors.Wrap(err, "could not generate package")
	}

	printResults(ctx, logger)

	return nil
}

// printResults reports what the run produced. The package path goes
// to stdout for scripts.
func printResults(ctx context.Context, logger log.Logger) {
	packagePath, _ := packagekit.GetFromContext(ctx, packagekit.ContextPackagePathKey)
	packageVersion, _ := packagekit.GetFromContext(ctx, packagekit.ContextPackageVersionKey)
	signed, _ := packagekit.GetFromContext(ctx, packagekit.ContextSignedKey)
	signer, _ := packagekit.GetFromContext(ctx, packagekit.ContextSignerSubjectKey)

	if packagePath == "" {
		level.Info(logger).Log("msg", "staged package contents, no package was built on this platform")
		return
	}

	level.Info(logger).Log(
		"msg", "package complete",
		"path", packagePath,
		"version", packageVersion,
		"signed", signed,
		"signer", signer,
	)

	fmt.Println(packagePath)
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Flags may also be set as %s_<FLAG> environment variables.\n", envPrefix)
		fmt.Fprintf(os.Stderr, "\n")
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "USAGE\n")
	fmt.Fprintf(os.Stderr, "  %s <mode> --help\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "MODES\n")
	fmt.Fprintf(os.Stderr, "  make         Package, and optionally sign, a prebuilt app as an msix\n")
	fmt.Fprintf(os.Stderr, "  render       Print the rendered AppxManifest.xml\n")
	fmt.Fprintf(os.Stderr, "  locate       Print the path to a Windows SDK tool\n")
	fmt.Fprintf(os.Stderr, "  list-archs   List the accepted architecture names\n")
	fmt.Fprintf(os.Stderr, "  version      Print full version information\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "VERSION\n")
	fmt.Fprintf(os.Stderr, "  %s\n", version.Version().Version)
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var runMode func([]string) error
	switch strings.ToLower(os.Args[1]) {
	case "version":
		runMode = runVersion
	case "make":
		runMode = runMake
	case "render":
		runMode = runRender
	case "locate":
		runMode = runLocate
	case "list-archs":
		runMode = runListArchs
	default:
		usage()
		os.Exit(1)
	}

	if err := runMode(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
