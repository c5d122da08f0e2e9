package main

import (
	"log"

	"github.com/SwiftFiat/taskmarket-ledger/api"
)

var envPath string = "."

func main() {
	server := api.NewServer(envPath)
	if err := server.Start(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
