package main

import "ykb/host/cmd/ykb-host/cmd"

func main() {
	cmd.Execute()
}
