package main

import "github.com/agentic-research/pricetag/cmd"

func main() {
	cmd.Execute()
}
