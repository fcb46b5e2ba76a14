package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kolide/msixkit/pkg/packaging"
)

func runListArchs(_args []string) error {
	outFH := os.Stdout

	fmt.Fprintf(outFH, "Accepted architectures\n")
	fmt.Fprintf(outFH, "Either a GOARCH or a windows name may be given to -arch and -tool_arch.\n")
	fmt.Fprintf(outFH, "\n")

	w := tabwriter.NewWriter(outFH, 0, 4, 4, ' ', 0)
	fmt.Fprintf(w, "NAME\tWINDOWS\n")

	for _, name := range packaging.KnownArchs() {
		arch, err := packaging.ArchFromString(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", name, arch)
	}
	w.Flush()

	fmt.Fprintf(outFH, "\nThis machine runs %s tools\n", packaging.HostToolArch())

	return nil
}
