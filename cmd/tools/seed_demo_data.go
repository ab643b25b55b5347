// Command tools seeds a local store with demo accounts and conversations
// so the server can be explored by hand without a client.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"

	"youth-hub/auth"
	"youth-hub/domain"
	"youth-hub/repositories"
)

const demoPassword = "Demo&Pass2026!"

func main() {
	dbPath := flag.String("db", "/tmp/youth-hub/badger", "Path to badger DB")
	flag.Parse()

	if err := seed(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "Seeding failed: %v\n", err)
		os.Exit(1)
	}
}

func seed(dbPath string) error {
	log := logs.GetLoggerFromLevel(slog.LevelInfo)

	db, err := badger.Open(badger.DefaultOptions(dbPath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return err
	}
	defer db.Close()

	users := repositories.NewUserRepository(db)
	rooms := repositories.NewRoomRepository(db)
	messages, err := repositories.NewMessageRepository(db, log, lo.ToPtr(50))
	if err != nil {
		return err
	}
	defer messages.Close()

	hash, err := auth.HashPassword(demoPassword)
	if err != nil {
		return err
	}

	var ids []domain.UserID
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		user, err := users.CreateUser(fmt.Sprintf("%s@youth-hub.local", name), name, hash)
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		ids = append(ids, domain.UserID(user.ID))
		log.Info("User created", "email", user.Email, "password", demoPassword)
	}

	private, _, err := rooms.FindOrCreatePrivateRoom(ids[0], ids[1])
	if err != nil {
		return err
	}
	group, err := rooms.CreateGroupRoom("Summer Camp 2026", ids)
	if err != nil {
		return err
	}

	script := []struct {
		room    domain.RoomID
		sender  domain.UserID
		content string
	}{
		{private.ID, ids[0], "Hey Bob, are you coming on Saturday?"},
		{private.ID, ids[1], "Of course, I will bring the guitar"},
		{group.ID, ids[0], "Welcome everyone to the camp room!"},
		{group.ID, ids[2], "Thanks Alice, happy to be here"},
	}
	for _, line := range script {
		if _, err := messages.InsertMessage(line.room, line.sender, line.content, "en"); err != nil {
			return err
		}
	}

	log.Info("Demo data ready",
		"private_room", private.ID, "group_room", group.ID, "messages", len(script))
	return nil
}
