// inspect dumps raw store keys and values for debugging a database
// offline. Run it only against a server that is stopped.
package main

import (
	"flag"
	"fmt"
	"os"

	"marianchat/pkg/logger"
	"marianchat/pkg/store"
)

func main() {
	var (
		dbPath = flag.String("db", "./.database", "pebble db path")
		prefix = flag.String("prefix", "", "key prefix to list (msg:, msgid:, user:, group:; empty for all)")
		key    = flag.String("key", "", "print the value of a single key")
	)
	flag.Parse()

	logger.InitWithLevel("error")
	if err := store.Open(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer store.Close()

	if *key != "" {
		v, err := store.GetKey(*key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "get %s: %v\n", *key, err)
			os.Exit(1)
		}
		fmt.Println(v)
		return
	}

	keys, err := store.ListKeys(*prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list: %v\n", err)
		os.Exit(1)
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", len(keys))
}
