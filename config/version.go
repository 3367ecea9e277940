package config

var Version = "dev"
