package lib

import (
	"log"
	"os"
)

func Load(path string) error {
	if path == "" {
		os.Exit(1) // want `os.Exit terminates the process`
	}
	if _, err := os.Stat(path); err != nil {
		log.Fatalf("stat: %v", err) // want `log.Fatalf terminates the process`
	}
	log.Println("loaded")
	return nil
}

func Shutdown() {
	defer log.Fatal("bye") // want `log.Fatal terminates the process`
	func() {
		log.Fatalln("nested") // want `log.Fatalln terminates the process`
	}()
}
