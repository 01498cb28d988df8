package main

import "github.com/unishare/unishare/client/cmd"

func main() {
	cmd.Execute()
}
