// seed-users creates the standard inspection crew in the remote user table so
// a fresh environment is usable before the admin adds anyone.
//
// Usage (from the backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_NAME=... go run ./cmd/seed-users
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Flabba2018/elkontroll-alver/config"
	"github.com/Flabba2018/elkontroll-alver/models"
	"gorm.io/gorm"
)

var crew = []models.User{
	{Name: "Cato", Role: "admin", Active: true},
	{Name: "Kristian", Role: "user", Active: true},
	{Name: "Bjørn Inge", Role: "user", Active: true},
}

func main() {
	ctx := context.Background()
	logger := config.NewLogger()

	db := config.ConnectDatabaseWithRetry()
	models.MigrateTable(db, logger)

	for _, user := range crew {
		var existing models.User
		err := db.WithContext(ctx).Where("name = ?", user.Name).First(&existing).Error
		if err == nil {
			fmt.Printf("finst alt: %s (%s)\n", existing.Name, existing.Role)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Fprintf(os.Stderr, "klarte ikkje slå opp %s: %v\n", user.Name, err)
			os.Exit(1)
		}
		if err := db.WithContext(ctx).Create(&user).Error; err != nil {
			fmt.Fprintf(os.Stderr, "klarte ikkje opprette %s: %v\n", user.Name, err)
			os.Exit(1)
		}
		fmt.Printf("oppretta: %s (%s)\n", user.Name, user.Role)
	}
}
