package main

import "github.com/jfmyers9/pingpoll/cmd"

func main() {
	cmd.Execute()
}
