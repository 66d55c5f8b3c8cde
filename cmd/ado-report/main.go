package main

import "github.com/goblinsan/ado-report/cmd/ado-report/commands"

func main() {
	commands.Execute()
}
