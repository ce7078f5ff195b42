package main

import (
	"log"

	"github.com/MrSnakeDoc/divesite/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ divesite failed to start: %v", err)
	}
}
