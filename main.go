package main

import "github.com/qobs-build/kfile/cmd"

func main() {
	cmd.Execute()
}
