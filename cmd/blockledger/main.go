package main

import "github.com/vietddude/blockledger/internal/cli"

func main() {
	cli.Execute()
}
