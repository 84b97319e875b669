package main

import "github.com/relayforge/claude-gateway/cmd"

func main() {
	cmd.Execute()
}
