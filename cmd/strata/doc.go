// Command strata is the operator CLI for the Strata tiering daemon. It talks
// to the same SQLite store the daemon uses, so queue submissions made here
// are picked up by a running stratad instance.
package main
