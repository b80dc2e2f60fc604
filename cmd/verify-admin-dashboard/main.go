// cmd/verify-admin-dashboard/main.go
package main

import (
	"os"

	"github.com/valpere/uiverify/internal/runner"
)

func main() {
	os.Exit(runner.MainBuiltin("admin-dashboard"))
}
