package main

import "github.com/mic-havock/ridb-backend/cmd"

func main() {
	cmd.Execute()
}
