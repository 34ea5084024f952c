package main

import (
	"context"

	"github.com/markusylisiurunen/devbox/internal/client"
)

var version = "dev"

func main() {
	client.Execute(context.Background(), version)
}
