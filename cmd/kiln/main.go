// Command kiln loads a directory of assets through a kiln Core and reports
// what the memory, registry and tracker subsystems saw.
package main

func main() {
	execute()
}
