package main

import "github.com/MeKo-Tech/billparse/cmd/billparse/cmd"

func main() {
	cmd.Execute()
}
