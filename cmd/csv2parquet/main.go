package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/fraugster/csv2parquet/cmd/csv2parquet/cmds"
)

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	os.Exit(cmds.Execute())
}
