package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/vecta/cmd/vecta/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
