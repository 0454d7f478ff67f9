package main

import (
	"log"

	"github.com/MrSnakeDoc/scout/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("❌ scout failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ scout stopped with error: %v", err)
	}
}
