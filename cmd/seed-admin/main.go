// Command seed-admin creates the initial dashboard operator from
// ADMIN_EMAIL/ADMIN_PASSWORD.
package main

import (
	"fmt"
	"log"
	"os"

	"claims-api/config"
	"claims-api/models"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	config.InitDB()

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}

	var existing models.User
	if err := config.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		fmt.Printf("Admin user already exists: %s\n", email)
		return
	}

	user := models.User{Email: email, Role: "admin"}
	if err := user.SetPassword(password); err != nil {
		log.Fatal("Failed to hash password:", err)
	}
	if err := config.DB.Create(&user).Error; err != nil {
		log.Fatal("Failed to create admin user:", err)
	}

	fmt.Printf("Admin user created: %s\n", email)
}
