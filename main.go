package main

import (
	"github.com/sidkik/rdmstage/cmd"
	"github.com/sidkik/rdmstage/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
