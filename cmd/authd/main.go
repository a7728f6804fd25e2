package main

import (
	"os"

	"github.com/nutritrack/authcore/cmd/authd/app"
)

func main() {
	if err := app.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
