// Package main implements the gcstress CLI tool.
//
// gcstress drives the Pure-Go copying collector through configurable
// workloads so its behavior can be observed outside a test harness:
//
//	gcstress churn -heap 64KB -workers 4 -rounds 10000   # allocation churn
//	gcstress list -heap 8MB -nodes 100000                # linked-list survival
//	gcstress info                                        # runtime information
//
// Heap sizes accept human-readable values ("64KB", "1MB") or plain byte
// counts.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "churn":
		churnCommand(os.Args[2:])
	case "list":
		listCommand(os.Args[2:])
	case "info":
		infoCommand()
	case "version", "--version", "-v":
		fmt.Printf("gcstress version %s\n", versionString)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`gcstress - workload driver for the Pure-Go copying collector

USAGE:
    gcstress <command> [arguments]

COMMANDS:
    churn      Hammer the heap with short-lived allocations
    list       Build and traverse a managed linked list across collections
    info       Show collector runtime information
    version    Show version information
    help       Show this help message

EXAMPLES:
    # Four workers churning a 64 KiB heap
    gcstress churn -heap 64KB -workers 4 -rounds 10000

    # A linked list that survives repeated collections
    gcstress list -heap 4MB -nodes 50000

`)
}
