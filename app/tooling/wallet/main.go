package main

import "github.com/ardanlabs/powchain/app/tooling/wallet/cmd"

func main() {
	cmd.Execute()
}
