package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"jobchat/internal/migrations"
	"jobchat/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	dbPath := flag.String("db", "./jobchat.db", "Path to the database file")
	status := flag.Bool("status", false, "Print the current schema version and exit")
	flag.Parse()

	if err := security.ValidateFilePath(*dbPath); err != nil {
		log.Fatalf("Invalid database path: %v", err)
	}

	if _, err := os.Stat(*dbPath); os.IsNotExist(err) && !*status {
		fmt.Printf("Database file not found, creating %s\n", *dbPath)
	}

	db, err := sql.Open("sqlite3", *dbPath+"?_busy_timeout=5000")
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *status {
		version, err := migrations.CurrentVersion(ctx, db)
		if err != nil {
			log.Fatalf("Failed to read schema version: %v", err)
		}
		fmt.Printf("Schema version: %d\n", version)
		return
	}

	applied, err := migrations.Apply(ctx, db)
	if err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	if len(applied) == 0 {
		fmt.Println("Schema is up to date, nothing to apply")
		return
	}
	for _, v := range applied {
		fmt.Printf("Applied migration %d\n", v)
	}
	fmt.Println("Database schema updated. You can now start jobchat.")
}
