package main

import "github.com/triage-visualizer/backend/internal/cli"

func main() {
	cli.Execute()
}
