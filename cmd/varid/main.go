// Command varid loads VARID visual impairment profiles, inspects the render passes they
// produce, and runs the VARID extension on a WebGPU host.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
