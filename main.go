package main

import "github.com/agentic-research/rigger/cmd"

func main() {
	cmd.Execute()
}
