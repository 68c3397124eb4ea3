package migrate

import (
	"chat-service/internal/conversation"
	"chat-service/internal/message"
	"chat-service/internal/shared/db"
	"chat-service/internal/user"
)

func AutoMigrateAll(store *db.Store) error {
	return store.Base.AutoMigrate(
		&user.User{},
		&conversation.Conversation{}, &conversation.Member{},
		&message.Message{}, &message.Reaction{},
	)
}
