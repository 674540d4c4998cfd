package main

import "github.com/shouni/z-image-cli/cmd"

func main() {
	cmd.Execute()
}
