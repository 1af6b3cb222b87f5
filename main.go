// The main package for the harvester executable.
package main

import (
	"github.com/hempwatch/harvester/cmd"
)

func main() {
	cmd.Execute()
}
