package main

import "x86sim/cmd/x86sim/cmd"

func main() {
	cmd.Execute()
}
