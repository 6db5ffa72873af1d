package main

import "github.com/verushub/stakewatch/internal/cli"

func main() {
	cli.Execute()
}
