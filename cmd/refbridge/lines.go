package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// runLines is the inspector without a terminal: one statement per line,
// results and the heap table printed after each.
func runLines(e *env, in io.Reader, out io.Writer) error {
	e.realm.WithOutput(out)
	sc := bufio.NewScanner(in)

	fmt.Fprint(out, "js> ")
	for sc.Scan() {
		src := strings.TrimSpace(sc.Text())
		switch src {
		case "":
		case ".heap":
			writeHeap(out, heapRows(e))
		case ".exit":
			return nil
		default:
			v, err := e.realm.Run(src)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			} else if v != nil {
				fmt.Fprintln(out, v.String())
			}
		}
		fmt.Fprint(out, "js> ")
	}
	fmt.Fprintln(out)
	return sc.Err()
}

func writeHeap(out io.Writer, rows []heapRow) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "  (empty)")
		return
	}
	for _, r := range rows {
		fmt.Fprintf(out, "  %-8s #%-4d strong=%d weak=%d %s\n", r.name, r.id, r.strong, r.weak, r.binding)
	}
}
