package main

import "transcribecore/cmd/transcribe-cli/cli"

func main() {
	cli.Execute()
}
