package main

import "github.com/rolevoice/signaling-relay/internal/bootstrap"

func main() {
	bootstrap.Run()
}
