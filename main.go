package main

import "github.com/portcullis-auth/portcullis/cmd"

func main() {
	cmd.Execute()
}
