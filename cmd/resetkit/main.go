package main

import (
	"log"

	"github.com/tech-arch1tect/resetkit"
)

func main() {
	app, err := resetkit.New()
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}
	app.Run()
}
