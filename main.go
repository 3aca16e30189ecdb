package main

import "github.com/naka-gawa/daystats/cmd"

func main() {
	cmd.Execute()
}
