package main

import "github.com/tra-portal/tra-portal/internal/cli"

func main() {
	cli.Execute()
}
