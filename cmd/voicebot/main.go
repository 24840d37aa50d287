// Command voicebot is the robot's voice front-end: it listens after a
// touch, sends the recording to the dialogue backend and speaks the reply
// with a matching gesture.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
