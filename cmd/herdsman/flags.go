package main

import "time"

// Flag structs to decouple cobra from logic for testing.

type GlobalFlags struct {
	ConfigPath string
	BaseDir    string
}

type ProfileFlags struct {
	Key   string
	Force bool
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
}

type OpenAllFlags struct {
	MaxParallel int
	APIUrl      string
	APITimeout  time.Duration
}

type AliasFlags struct {
	Key        string
	Name       string
	APIUrl     string
	APITimeout time.Duration
}

type ServeFlags struct {
	ConfigPath string
	BaseDir    string
}
