package main

import "github.com/pbelyakov/planforge/cmd"

func main() {
	cmd.Execute()
}
