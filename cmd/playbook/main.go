// Command playbook walks incidents through their response workflows.
package main

func main() {
	Execute()
}
