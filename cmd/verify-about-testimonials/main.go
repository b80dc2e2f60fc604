// cmd/verify-about-testimonials/main.go
package main

import (
	"os"

	"github.com/valpere/uiverify/internal/runner"
)

func main() {
	os.Exit(runner.MainBuiltin("about-testimonials"))
}
