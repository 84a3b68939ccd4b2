// Command pm is the project and lab management tool: it tracks scientific
// projects, archives sequencing runs, drives pipeline runs and stages sample
// deliveries.
package main

import (
	"context"
	"os"

	"pm/bootstrap"
	"pm/cmd"
)

func main() {
	os.Exit(bootstrap.Main(context.Background(), os.Args[1:], bootstrap.Options{}, cmd.Controllers))
}
