package main

import (
	"github.com/joho/godotenv"

	"github.com/yorozuya-cybersecurity/nessusview/pkg/cli"
)

func main() {
	// Local overrides for NESSUSVIEW_* settings; missing files are fine.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cli.Execute()
}
