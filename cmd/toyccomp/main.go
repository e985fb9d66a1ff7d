// Command toyccomp compiles a single .c source file into x86-64 NASM
// assembly. It does not invoke nasm or a linker: the output is the .s
// file, ready to be assembled against the four-function print runtime.
package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"

	"toyccomp/pkg/compiler"
	"toyccomp/pkg/utils"
)

var options struct {
	Output  string `short:"o" long:"output" description:"output assembly file (default: out.s in the working directory)"`
	Args    struct {
		Input string `positional-arg-name:"source" description:"input source file"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	if _, err := flags.Parse(&options); err != nil {
		// go-flags already printed usage on -h/--help or a parse error.
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	inputPath, _, err := utils.GetPathInfo(options.Args.Input)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", options.Args.Input, err)
	}

	debug := os.Getenv("TOYC_DEBUG") != ""
	info := os.Getenv("TOYC_INFO") != "" || debug

	if info {
		fmt.Fprintf(os.Stderr, "[INFO] compiling %s\n", inputPath)
	}

	result, err := compiler.CompileFile(inputPath)
	if err != nil {
		return err
	}

	if debug {
		fmt.Fprintln(os.Stderr, "[DEBUG] symbol table:")
		fmt.Fprint(os.Stderr, result.Symbols.String())
		fmt.Fprintln(os.Stderr, "[DEBUG] generated assembly:")
		fmt.Fprint(os.Stderr, result.Assembly)
	}

	outputPath := options.Output
	if outputPath == "" {
		outputPath = "out.s"
	}

	if err := os.WriteFile(outputPath, []byte(result.Assembly), 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", outputPath, err)
	}

	if info {
		fmt.Fprintf(os.Stderr, "[INFO] wrote %s\n", outputPath)
	}
	return nil
}
