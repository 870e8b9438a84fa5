package main

import (
	"newsradar/cmd/cmd"
	"newsradar/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	cmd.Execute()
}
