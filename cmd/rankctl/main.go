package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"rank_tracker/internal/cli"
)

func main() {
	_ = godotenv.Load()

	if err := cli.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "rankctl:", err)
		os.Exit(1)
	}
}
