package main

import (
	"bizradar/cmd"
)

func main() {
	cmd.Execute()
}
