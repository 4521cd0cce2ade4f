package main

import "github.com/MeKo-Tech/boskaart/internal/cmd"

func main() {
	cmd.Execute()
}
