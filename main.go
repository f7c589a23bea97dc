package main

import "github.com/kamusis/fitmatch/cmd"

func main() {
	cmd.Execute()
}
