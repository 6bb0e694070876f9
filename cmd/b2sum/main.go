// Command b2sum prints or checks BLAKE2b checksums, optionally keyed,
// salted and personalized.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
