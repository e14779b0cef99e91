package main

import "time"

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	ConfigPath    string
	Listen        string
	MetricsListen string
}

// ClientFlags holds flags shared by the commands that talk to a running daemon.
type ClientFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

const defaultAPIUrl = "http://127.0.0.1:8080/api"
