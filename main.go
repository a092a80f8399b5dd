package main

import "github.com/ethpandaops/validator-ejector/cmd"

func main() {
	cmd.Execute()
}
