// Package main provides the storytree CLI.
package main

import "github.com/mesh-intelligence/storytree/internal/cli"

func main() {
	cli.Execute()
}
