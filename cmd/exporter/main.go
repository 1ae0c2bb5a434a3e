package main

import "github.com/thirdweb-dev/archive-exporter/cmd"

func main() {
	cmd.Execute()
}
