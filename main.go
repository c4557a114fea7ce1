package main

import "github.com/tanq16/rfidrop/cmd"

func main() {
	cmd.Execute()
}
