package main

import "github.com/DukeRupert/hacbridge/cmd/hacctl/cmd"

func main() {
	cmd.Execute()
}
