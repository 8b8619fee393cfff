package main

import "github.com/KaramelBytes/sow-workbench/cmd"

func main() {
	cmd.Execute()
}
