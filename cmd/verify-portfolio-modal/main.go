// cmd/verify-portfolio-modal/main.go
package main

import (
	"os"

	"github.com/valpere/uiverify/internal/runner"
)

func main() {
	os.Exit(runner.MainBuiltin("portfolio-modal"))
}
