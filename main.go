package main

import "catalog-hub/cmd"

func main() {
	cmd.Execute()
}
