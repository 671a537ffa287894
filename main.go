package main

import (
	"github.com/bihealth/seahorse/cmd"
)

func main() {
	cmd.Execute()
}
