// Command spindle is the cobra-based CLI client for the spindled daemon.
package main

import "github.com/spiritengine/spindle/cmd/spindle/commands"

func main() {
	commands.Execute()
}
