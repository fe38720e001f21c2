package main

import "shiftsync/internal/cli"

func main() {
	cli.Execute()
}
