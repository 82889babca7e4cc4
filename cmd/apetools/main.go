package main

import "apetools/internal/cli"

func main() {
	cli.Execute()
}
