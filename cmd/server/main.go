// Command server runs the notes backend.
package main

func main() {
	Execute()
}
