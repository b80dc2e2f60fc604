// cmd/verify-book-now/main.go
package main

import (
	"os"

	"github.com/valpere/uiverify/internal/runner"
)

func main() {
	os.Exit(runner.MainBuiltin("book-now"))
}
