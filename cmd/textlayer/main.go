package main

import "github.com/lucidpdf/textlayer/internal/cli"

func main() {
	cli.Execute()
}
