// Command gatewayctl dispatches a batch document through a gateway pool
// configured from a YAML or JSON file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
