package main

import (
	"os"
	"strconv"
)

type Config struct {
	Port   int
	DBPath string
}

func LoadConfig() *Config {
	port := 8090
	if portStr := os.Getenv("PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}

	dbPath := "./data/trees.db"
	if p := os.Getenv("DB_PATH"); p != "" {
		dbPath = p
	}

	return &Config{Port: port, DBPath: dbPath}
}
