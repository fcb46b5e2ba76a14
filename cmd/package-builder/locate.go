package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kolide/kit/env"
	"github.com/kolide/kit/logutil"
	"github.com/kolide/msixkit/pkg/packagekit/sdktools"
	"github.com/kolide/msixkit/pkg/packaging"
	"github.com/peterbourgon/ff/v3"
)

func runLocate(args []string) error {
	flagset := flag.NewFlagSet("package-builder locate", flag.ExitOnError)
	var (
		flTool = flagset.String(
			"tool",
			sdktools.MakeAppx,
			"the tool to find, eg: makeappx, signtool, makepri",
		)
		flToolArch = flagset.String(
			"tool_arch",
			"",
			"which architecture of the tool. Defaults to this machine's",
		)
		flSDKRoot = flagset.String(
			"sdk_root",
			env.String("WindowsSdkDir", ""),
			"the Windows SDK root. Defaults to a search of Program Files",
		)
	)

	flagset.Usage = usageFor(flagset, "package-builder locate [flags]")
	if err := ff.Parse(flagset, args, ff.WithEnvVarPrefix(envPrefix)); err != nil {
		logutil.Fatal(logutil.NewCLILogger(true), "msg", "error parsing flags", "err", err)
	}

	toolArch := packaging.HostToolArch()
	if *flToolArch != "" {
		var err error
		if toolArch, err = packaging.ArchFromString(*flToolArch); err != nil {
			return err
		}
	}

	var opts []sdktools.Opt
	if *flSDKRoot != "" {
		opts = append(opts, sdktools.WithRoot(*flSDKRoot))
	}

	return locate(os.Stdout, sdktools.New(opts...), *flTool, toolArch)
}

func locate(stdout io.Writer, locator *sdktools.Locator, tool string, arch packaging.Arch) error {
	path, err := locator.Require(toolFileName(tool), arch.String())
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, path)
	return nil
}

// toolFileName accepts tool names with or without the .exe
func toolFileName(tool string) string {
	tool = strings.ToLower(strings.TrimSpace(tool))
	if filepath.Ext(tool) != ".exe" {
		tool += ".exe"
	}
	return tool
}
