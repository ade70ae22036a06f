package main

import (
	"log"

	"github.com/opendatalabcz/emissions-etl/internal/cli"
)

func main() {
	log.SetFlags(0)
	if err := cli.Execute(); err != nil {
		log.Fatalf("stketl: %v", err)
	}
}
