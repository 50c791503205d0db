package main

import "github.com/Laisky/reel-places/cmd"

func main() {
	cmd.Execute()
}
