package main

import (
	"os"

	"github.com/OhanaFS/nhale/cmd/nhale/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
