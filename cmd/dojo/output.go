package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/kingrea/dojo-manager/internal/dojo"
)

func printReport(w io.Writer, report dojo.Report) {
	for _, line := range report.Lines() {
		fmt.Fprintln(w, line)
	}
}

func printOverview(w io.Writer, ov dojo.Overview) {
	header := fmt.Sprintf("%s (%s)", ov.Dojo.Name(), ov.Dojo.ID())
	if t := ov.Dojo.Type(); t != "" {
		header += " [" + t + "]"
	}
	fmt.Fprintln(w, header)
	if len(ov.Modules) == 0 {
		fmt.Fprintln(w, "  no modules")
		return
	}
	for _, mo := range ov.Modules {
		fmt.Fprintf(w, "  %s (%s)\n", mo.Entry.Name, mo.Entry.ID)
		if mo.Err != nil {
			fmt.Fprintf(w, "    ! %v\n", mo.Err)
		}
		for _, co := range mo.Challenges {
			line := fmt.Sprintf("    %s (%s)", co.Challenge.Name, co.Challenge.ID)
			if co.Challenge.AllowPrivileged {
				line += " privileged"
			}
			fmt.Fprintln(w, line)
			if len(co.Submodules) > 0 {
				fmt.Fprintf(w, "      submodules: %s\n", strings.Join(co.Submodules, ", "))
			}
		}
	}
}
