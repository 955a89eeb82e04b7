package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/cmd/pubmedsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
