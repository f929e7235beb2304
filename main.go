// The main package for the gamecrawler executable.
package main

import "github.com/JakeFAU/game-catalog-crawler/cmd"

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
