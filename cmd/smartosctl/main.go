// Command smartosctl is the developer CLI wrapping the loader, scheduler
// and thread pool for manual exercise and scripting.
package main

import (
	"os"

	"github.com/sifat29/smartos/internal/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
