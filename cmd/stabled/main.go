package main

import "github.com/halvalla/stabled/internal/cli"

func main() {
	cli.Execute()
}
