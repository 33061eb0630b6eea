package main

import "github.com/MrEthical07/sessionauth/cmd/sessionauthd/cmd"

func main() {
	cmd.Execute()
}
