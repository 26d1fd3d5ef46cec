package users

import (
	"fmt"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "123456"

// Demo accounts cover every branch of the permission checks on the web app.
var demoUsers = []User{
	{
		Email:       "admin@example.com",
		Permissions: []string{"users.list", "users.create", "metrics.list"},
		Roles:       []string{"administrator"},
	},
	{
		Email:       "editor@example.com",
		Permissions: []string{"users.list", "metrics.list"},
		Roles:       []string{"editor"},
	},
	{
		Email:       "viewer@example.com",
		Permissions: []string{"users.list"},
		Roles:       []string{"viewer"},
	},
}

// SeedDemoUsers stores the demo accounts in repo, all opened by DemoPassword.
// Seeding twice updates the existing accounts.
func SeedDemoUsers(repo UserRepo) ([]*User, error) {
	hash, err := HashPassword(DemoPassword)
	if err != nil {
		return nil, fmt.Errorf("[users SeedDemoUsers] %w", err)
	}

	seeded := make([]*User, 0, len(demoUsers))
	for _, demo := range demoUsers {
		user := demo
		user.PasswordHash = hash
		if existing, err := repo.GetByEmail(user.Email); err == nil {
			user.ID = existing.ID
			user.DateJoined = existing.DateJoined
		}
		if err := repo.Upsert(&user); err != nil {
			return nil, fmt.Errorf("[users SeedDemoUsers] %s: %w", user.Email, err)
		}
		seeded = append(seeded, &user)
	}
	return seeded, nil
}
