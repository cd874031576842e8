package main

import "github.com/yarlson/offstage/cmd"

func main() {
	cmd.Execute()
}
