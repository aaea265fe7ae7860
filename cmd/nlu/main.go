package main

import "nlu/internal/cli"

func main() {
	cli.Execute()
}
