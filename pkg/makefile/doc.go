// Package makefile extracts rule records from Makefiles.
//
// # Sources
//
// A [Source] turns a Makefile path into an [Input]: the raw rule blocks plus
// the variables needed to resolve recursive make calls. Three sources exist:
//
//   - [DatabaseSource] runs GNU make with --print-data-base --question and
//     reads the "# Files" and "# Implicit Rules" sections of the dump. make
//     resolves variables, includes, conditionals and pattern instantiation.
//   - [ScanSource] reads the Makefile text directly. It follows include
//     directives and expands variables, but evaluates both branches of every
//     conditional and cannot run $(shell ...).
//   - [AutoSource] uses the database and falls back to scanning when make
//     is missing or fails.
//
// # Parsing
//
// [Parser.Records] yields one [Record] per target of each rule line. Lines
// without a ':' separator or without a target are skipped with a warning.
//
//	p := makefile.NewParser()
//	for rec := range p.Records(in.Blocks) {
//	    fmt.Println(rec.Target, rec.Prerequisites)
//	}
//	for _, w := range p.Warnings() {
//	    log.Warn(w.Message, "origin", w.Origin)
//	}
//
// # Recursive make
//
// A [Walker] loads a Makefile and, when following is enabled, every Makefile
// its recipes run make on with -C, -f or a preceding cd. Targets of a
// sub-makefile are prefixed with its directory, so "all" in lib/Makefile
// becomes "lib/all".
package makefile
