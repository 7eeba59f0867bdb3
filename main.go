/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/PiotrWisniewskiDBR77/consultify-sub011/cmd"

func main() {
	cmd.Execute()
}
