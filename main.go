package main

import "github.com/teamroom/teamroom/cmd/server"

func main() {
	s := server.NewServer()
	defer s.Shutdown()
	s.Run()
}
