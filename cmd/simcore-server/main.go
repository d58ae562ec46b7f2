package main

import "github.com/simcore/simcore/internal/adapters/cli"

func main() {
	cli.Execute(cli.NewServerRootCommand())
}
