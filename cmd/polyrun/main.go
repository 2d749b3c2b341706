package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

func main() {
	var (
		lang        = flag.String("lang", "jq", "Language of the source")
		expr        = flag.String("e", "", "Source to evaluate")
		file        = flag.String("file", "", "Path of a source file to evaluate")
		configPath  = flag.String("config", "", "Path of a TOML isolate config")
		listLangs   = flag.Bool("list", false, "List installed languages and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*configPath, *lang); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, *lang, *expr, *file, *listLangs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, lang, expr, file string, listOnly bool) error {
	s, err := newSession(configPath, nil)
	if err != nil {
		return err
	}
	defer s.close()

	if listOnly {
		ids, err := s.languages()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}

	source, name, err := readSource(expr, file)
	if err != nil {
		return err
	}

	out, err := s.eval(lang, name, source)
	if err != nil {
		var ge *guestError
		if errors.As(err, &ge) {
			return fmt.Errorf("%s raised an exception: %w", name, err)
		}
		return fmt.Errorf("eval %s: %w", name, err)
	}
	fmt.Println(out)
	return nil
}

// readSource picks the source from -e, then -file, then a piped stdin.
func readSource(expr, file string) (source, name string, err error) {
	switch {
	case expr != "":
		return expr, "<expr>", nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", "", fmt.Errorf("read file: %w", err)
		}
		return string(data), file, nil
	case !term.IsTerminal(int(os.Stdin.Fd())):
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "<stdin>", nil
	}
	return "", "", errors.New("usage: polyrun [-lang id] (-e source | -file path | -i | -list) [-config file]")
}
