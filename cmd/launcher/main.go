// Command launcher demand-paged loads and runs a 32-bit statically-linked
// ELF executable: launcher <elf-path> <policy> <max-pages>.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sifat29/smartos/internal/loader"
)

func main() {
	os.Exit(run(os.Args))
}

func run(argv []string) int {
	if len(argv) != 4 {
		fmt.Fprintf(os.Stderr, "usage: %s <elf-path> <policy> <max-pages>\n", argv[0])
		return 1
	}

	elfPath := argv[1]
	policyName := argv[2]
	maxPages, err := strconv.Atoi(argv[3])
	if err != nil || maxPages <= 0 {
		fmt.Fprintln(os.Stderr, "Invalid number of max pages entered")
		return 1
	}

	l, err := loader.New(elfPath, policyName, maxPages, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer l.Cleanup()

	result, err := l.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Println()
	fmt.Println("-----------------------------------------------------------------------------")
	fmt.Println("------------------------- User executable result ----------------------------")
	fmt.Println("-----------------------------------------------------------------------------")
	fmt.Printf("User _start return value = %d\n", result)
	fmt.Print(l.Stats().String())

	return 0
}
