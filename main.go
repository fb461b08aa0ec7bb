package main

import "envbench/cmd"

func main() {
	cmd.Execute()
}
