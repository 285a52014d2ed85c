package main

import "github.com/menta2k/photocrop/cmd/photocrop/cmd"

func main() {
	cmd.Execute()
}
