package main

import "github.com/my3495/scriptpack/cmd/scriptpack-inspect/cmd"

func main() {
	cmd.Execute()
}
