package database

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Connect opens the database. databaseURL selects the backend: "postgres..."
// builds a DSN from DB_* environment variables (Cloud SQL socket in
// production, local TCP otherwise), anything else is a sqlite file path.
func Connect(databaseURL string) {
	var err error

	if strings.HasPrefix(databaseURL, "postgres") {
		DB, err = gorm.Open(postgres.Open(postgresDSN()), &gorm.Config{})
	} else {
		log.Printf("Connecting to sqlite database at %s", databaseURL)
		DB, err = gorm.Open(sqlite.Open(databaseURL), &gorm.Config{})
	}

	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		panic(err)
	}

	log.Println("✅ Database connected successfully!")
}

func postgresDSN() string {
	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		dbUser = "postgres"
	}

	dbPass := os.Getenv("DB_PASS")
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "memobot"
	}

	// For Cloud Run with Cloud SQL
	socketDir := "/cloudsql"
	instanceConnectionName := os.Getenv("INSTANCE_CONNECTION_NAME")

	if instanceConnectionName != "" {
		// Production: Connect via Unix socket
		log.Printf("Connecting to Cloud SQL via socket: %s", instanceConnectionName)
		return fmt.Sprintf("host=%s/%s user=%s password=%s dbname=%s sslmode=disable",
			socketDir, instanceConnectionName, dbUser, dbPass, dbName)
	}

	// Local development: Connect via TCP
	log.Println("Connecting to local PostgreSQL")
	return fmt.Sprintf("host=localhost user=%s password=%s dbname=%s port=5432 sslmode=disable",
		dbUser, dbPass, dbName)
}
