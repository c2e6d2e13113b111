package main

import (
	"catcluster/cmd/handlers"
)

func main() {
	handlers.Execute()
}
