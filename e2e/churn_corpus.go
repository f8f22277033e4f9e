// Command churn_corpus mutates a policy corpus between processing runs, so
// end-to-end checks can watch add, amend and remove flow through reconcile.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultClause = "All prior provisions remain in force unless superseded by this clause."

func main() {
	corpus := flag.String("corpus", "", "corpus directory")
	op := flag.String("op", "add", "add, amend or remove")
	name := flag.String("name", "amendment_policy.md", "document file name")
	text := flag.String("text", "", "clause text")
	flag.Parse()

	if *corpus == "" {
		fmt.Fprintln(os.Stderr, "corpus is required")
		os.Exit(2)
	}
	clause := *text
	if clause == "" {
		clause = defaultClause
	}
	path := filepath.Join(*corpus, *name)

	switch *op {
	case "add":
		content := fmt.Sprintf("# %s\n\n%s\n", titleFromName(*name), clause)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "add: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("added %s\n", path)
	case "amend":
		existing, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "amend: %v\n", err)
			os.Exit(1)
		}
		content := append(existing, []byte(fmt.Sprintf("\n## Amendment\n\n%s\n", clause))...)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "amend: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("amended %s\n", path)
	case "remove":
		if err := os.Remove(path); err != nil {
			fmt.Fprintf(os.Stderr, "remove: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("removed %s\n", path)
	default:
		fmt.Fprintf(os.Stderr, "unknown op %q\n", *op)
		os.Exit(2)
	}
}

func titleFromName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return base
	}
	return strings.Join(words, " ")
}
