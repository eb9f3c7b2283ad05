package main

import "github.com/mihaisavezi/polychat/cmd"

func main() {
	cmd.Execute()
}
