package main

import (
	"log"

	"github.com/lottoloop/chain-custody/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("custodyd exited: %v", err)
	}
}
