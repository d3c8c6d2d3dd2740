package main

import "github.com/tianting/celestial-court/cmd"

func main() {
	cmd.Execute()
}
