// The main package for the appcatalog executable.
package main

import (
	"github.com/JakeFAU/appcatalog/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
