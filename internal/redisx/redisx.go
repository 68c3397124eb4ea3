package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct{ R *redis.Client }

func NewClient(addr string) *Client {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	return &Client{R: rdb}
}

// Typing indicators are short-lived keys; presence of the key means the
// user is typing in that conversation.

const typingTTL = 5 * time.Second

func typingKey(conversationID, userID uint) string {
	return fmt.Sprintf("typing:conv:%d:user:%d", conversationID, userID)
}

func (c *Client) SetTyping(ctx context.Context, conversationID, userID uint) error {
	return c.R.Set(ctx, typingKey(conversationID, userID), "1", typingTTL).Err()
}

func (c *Client) IsTyping(ctx context.Context, conversationID, userID uint) bool {
	val, err := c.R.Get(ctx, typingKey(conversationID, userID)).Result()
	return err == nil && val == "1"
}
