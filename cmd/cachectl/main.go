package main

import (
	"fmt"
	"os"

	"github.com/illmade-knight/go-chatsync/cmd/cachectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
