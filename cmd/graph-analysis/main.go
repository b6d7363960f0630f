package main

import "github.com/graph-analysis/cmd/graph-analysis/cmd"

func main() {
	cmd.Execute()
}
