package main

import "github.com/vibepod/vibepod/cmd"

func main() {
	cmd.Execute()
}
