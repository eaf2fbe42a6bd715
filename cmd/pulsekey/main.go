package main

import "github.com/pulsekey/pulsekey/internal/cli"

func main() {
	cli.Execute()
}
