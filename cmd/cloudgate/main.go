// Package main is the entry point for cloudgate.
package main

func main() {
	Execute()
}
