// Command svt is a terminal image viewer that renders via the Kitty
// Graphics Protocol.
package main

import "github.com/kan-bayashi/svt/internal/cmd"

func main() {
	cmd.Execute()
}
