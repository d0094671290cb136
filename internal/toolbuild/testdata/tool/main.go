// Command tool is a tiny command used to exercise toolbuild.
package main

import (
	"flag"
	"fmt"
)

func main() {
	version := flag.Bool("version", false, "print the version")
	flag.Parse()
	if *version {
		fmt.Println("Version: 1.2.3")
		return
	}
	fmt.Println("hello from tool")
}
