// Command classrunner runs code units from profile-selected packages.
package main

func main() {
	Execute()
}
