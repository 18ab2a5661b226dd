package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/client/cli"
)

func main() {
	os.Exit(cli.Main(context.Background(), os.Args[1:]))
}
