// Package main provides the forksim command line interface.
// forksim drives the speculative fork control core from trace scenarios,
// the built-in reference scenarios, or the fetch stream of a RISC-V ELF.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
