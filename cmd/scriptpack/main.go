package main

import "github.com/my3495/scriptpack/cmd/scriptpack/cmd"

func main() {
	cmd.Execute()
}
