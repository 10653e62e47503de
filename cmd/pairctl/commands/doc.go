// Package commands defines the pairctl operator CLI.
//
// Commands
//
//   - threadid <a> <b>   Print the thread id and key salt of a pair
//   - parse <thread-id>  Print the pair a thread id was derived from
//   - open <a> <b>       Decrypt a thread envelope and print its history
//   - seal <a> <b>       Seal a JSON history read from stdin into a thread envelope
//   - user add <id> <name>  Register a party in the user directory
//
// Envelopes are read from and written to --data-dir, the same directory the
// server keeps them in.
package commands
