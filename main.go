package main

import (
	"os"

	"github.com/designforge/mimicry/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
