/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/Anupam-Kumar2505/djsce-resources/cmd"

func main() {
	cmd.Execute()
}
