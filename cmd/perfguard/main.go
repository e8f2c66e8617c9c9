package main

import "github.com/vietddude/perfguard/internal/cli"

func main() {
	cli.Execute()
}
