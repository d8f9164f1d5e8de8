package main

import "github.com/deploymenttheory/go-hfsplus/cmd"

func main() {
	cmd.Execute()
}
