package main

import "github.com/audiolibrelab/improvlab/cmd"

func main() {
	cmd.Execute()
}
