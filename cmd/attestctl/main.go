// Command attestctl drives and inspects a Trusted Attestation Core
// without requiring real TEE hardware.
package main

import (
	"fmt"
	"os"

	"github.com/ctrlflow/attestcore/cmd/attestctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
