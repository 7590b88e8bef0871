package main

import "github.com/florinutz/icereplace/cmd"

func main() {
	cmd.Execute()
}
