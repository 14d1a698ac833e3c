package main

import "github.com/CraigKelly/rotcurve/cmd"

// TODO: resume a saved run from its final walker positions

func main() {
	cmd.Execute()
}
