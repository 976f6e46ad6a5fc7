package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/prospectline/prospect-matcher/cmd"
)

func main() {
	// A missing .env file is fine; values may come from the environment itself.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
