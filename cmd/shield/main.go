package main

import "github.com/kyvernlabs/shield/internal/cli"

func main() {
	cli.Execute()
}
