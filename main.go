package main

import "github.com/ValentinKolb/tally/cmd"

func main() {
	cmd.Execute()
}
