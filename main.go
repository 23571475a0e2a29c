package main

import "github.com/agentic-research/vmgen/cmd"

func main() {
	cmd.Execute()
}
