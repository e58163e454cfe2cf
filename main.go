// Package main provides the entry point for ForkSim.
// ForkSim simulates the control core of a speculative multi-core unit that
// forks loop iterations onto idle worker cores.
//
// For the full CLI, use: go run ./cmd/forksim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("ForkSim - Speculative Fork Control Core Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: forksim <command> [flags]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run        Run scenario files and check their expectations")
	fmt.Println("  builtin    Run the built-in reference scenarios")
	fmt.Println("  elf        Fetch every block of a RISC-V program")
	fmt.Println("  config     Write or check configuration files")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/forksim --help' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/forksim' instead.")
	}
}
