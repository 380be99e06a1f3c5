package main

import "github.com/notargets/gotraj/cmd"

func main() {
	cmd.Execute()
}
