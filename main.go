package main

import "github.com/lorehq/lore/cmd"

func main() {
	cmd.Execute()
}
