package main

import "github.com/oshokin/package-assembler/cmd/package-assembler/cmd"

func main() {
	cmd.Execute()
}
