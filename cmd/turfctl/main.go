package main

import "github.com/turfbook/turfbook/cmd/turfctl/cmd"

func main() {
	cmd.Execute()
}
