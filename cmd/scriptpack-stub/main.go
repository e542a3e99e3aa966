package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/my3495/scriptpack/internal/stub"
)

func main() {
	// The interpreter child handles the terminal interrupt itself; the
	// launcher stays alive to remove the runtime directory afterwards.
	signal.Ignore(os.Interrupt)

	os.Exit(stub.Run(context.Background(), os.Args[1:]))
}
