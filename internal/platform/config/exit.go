package config

import (
	"fmt"
	"os"
)

// Exitf reports a fatal command error on stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "statusfrag: "+format+"\n", args...)
	os.Exit(1)
}
