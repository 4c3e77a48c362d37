package main

import "github.com/castworks/processor-api/cmd"

func main() {
	cmd.Execute()
}
