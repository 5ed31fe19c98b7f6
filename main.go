package main

import "github.com/TrizenVenturesLLP/task-connect-relay/cmd"

func main() {
	cmd.Execute()
}
