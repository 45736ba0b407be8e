package main

import "github.com/SoarinFerret/TabWarden/cmd/twctl/arg"

func main() {
	arg.Execute()
}
