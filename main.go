package main

import "hologram-cli/cmd"

func main() {
	cmd.Execute()
}
