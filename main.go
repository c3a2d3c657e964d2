package main

import "github.com/ValentinKolb/rws/cmd"

func main() {
	cmd.Execute()
}
