package main

import "github.com/retention-intel/server/internal/cmd"

func main() {
	cmd.Execute()
}
