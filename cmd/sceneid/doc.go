// sceneid is the command-line interface to the scene recognition daemon:
// it runs the daemon in the foreground and submits recognition requests,
// status queries, and maintenance commands over its HTTP API.
package main
