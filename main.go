package main

import "github.com/notargets/dgcache/cmd"

func main() {
	cmd.Execute()
}
