// Command nubilum runs and talks to a push notification server.
//
// Usage:
//
//	nubilum serve                 Start the push server and admin API
//	nubilum send [flags] content  Send one envelope and print the reply
//	nubilum mobile                Send stdin lines as envelopes (!quit exits)
//	nubilum fmt [file]            Print JSON documents in canonical form
//	nubilum check [file]          Check documents against the envelope shape
//	nubilum version               Print version info
//
// If no file is given, fmt and check read from stdin.
package main

func main() {
	Execute()
}
