package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const resetPrompt = "Reset remote data before generating? (y/n): "

// confirmReset asks once on out and reads a single line from in.
// Only "y" or "yes" confirm; EOF or a read error counts as no.
func confirmReset(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, resetPrompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
