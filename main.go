package main

import (
	"github.com/mavkit/mavconn/cmd"
)

func main() {
	cmd.Execute()
}
