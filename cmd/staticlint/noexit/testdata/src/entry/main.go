package main

import (
	"log"
	"os"
)

func main() {
	if len(os.Args) > 3 {
		log.Fatal("too many arguments")
	}
	os.Exit(0)
}
