package main

import (
	"fmt"
	"os"

	"listing-aggregator-service/internal"
)

func main() {
	app, err := internal.NewApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "listing-aggregator-service: init: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "listing-aggregator-service: %v\n", err)
		os.Exit(1)
	}
}
