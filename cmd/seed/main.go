package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"chat-service/internal/message"
)

var base = envOr("CHAT_BASE_URL", "http://localhost:8085")

// Account holds credentials for a seeded user.
type Account struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func main() {
	gofakeit.Seed(time.Now().UnixNano())

	// --- USERS GROUP ---

	// 1. Register three users.
	accounts := make([]Account, 3)
	ids := make([]uint, 3)
	tokens := make([]string, 3)
	for i := range accounts {
		accounts[i] = Account{
			Name:     gofakeit.Name(),
			Email:    gofakeit.Email(),
			Password: "123456", // default password
		}
		registerUser(accounts[i])
	}

	// 2. Login and retrieve auth tokens.
	for i, a := range accounts {
		ids[i], tokens[i] = loginUser(a.Email, a.Password)
		if tokens[i] == "" {
			log.Fatal("Could not obtain token, aborting seeding process")
		}
	}

	// --- CONVERSATIONS GROUP ---

	// 3. Create a private conversation between user 0 and user 1.
	privID := createConversation(tokens[0], "PRIVATE", "", []uint{ids[1]})
	// 4. Repeat the call; the same conversation must come back.
	again := createConversation(tokens[0], "PRIVATE", "", []uint{ids[1]})
	if again != privID {
		log.Printf("WARNING: private conversation not deduplicated: %d vs %d", privID, again)
	}
	// 5. Create a group conversation with everyone.
	groupID := createConversation(tokens[0], "GROUP", gofakeit.HipsterWord()+" crew", []uint{ids[1], ids[2]})

	// 6. List conversations for each user.
	for i := range tokens {
		listConversations(tokens[i])
	}

	// --- MESSAGES GROUP ---

	// 7. Send a few text messages; clients ship content obfuscated.
	var lastMsg uint
	for i := 0; i < 5; i++ {
		who := i % 2
		lastMsg = sendText(tokens[who], groupID, gofakeit.HipsterSentence(6))
	}
	// 8. Mention a member by name.
	sendText(tokens[0], groupID, "@"+accounts[1].Name+" "+gofakeit.HipsterSentence(4))
	// 9. Page through the history.
	listMessages(tokens[1], groupID)

	// --- REACTIONS GROUP ---

	// 10. React to the last message.
	addReaction(tokens[1], lastMsg, "👍")
	addReaction(tokens[2], lastMsg, "🔥")
	// 11. Change of heart.
	removeReaction(tokens[1], lastMsg, "👍")

	// --- READ STATE GROUP ---

	// 12. Mark the group read for user 2.
	markRead(tokens[2], groupID)
	// 13. Typing indicator round-trip.
	setTyping(tokens[0], groupID)
	listTyping(tokens[1], groupID)

	log.Printf("seeded: private=%d group=%d users=%v", privID, groupID, ids)
}

//
// USERS Group Functions
//

func registerUser(a Account) {
	data, _ := json.Marshal(a)
	resp, err := http.Post(base+"/auth/register", "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.Println("Error in registerUser:", err)
		return
	}
	defer resp.Body.Close()
	log.Printf("registerUser: %s status: %s", a.Email, resp.Status)
}

func loginUser(email, password string) (uint, string) {
	credentials := map[string]string{"email": email, "password": password}
	data, _ := json.Marshal(credentials)
	resp, err := http.Post(base+"/auth/login", "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.Println("Error in loginUser:", err)
		return 0, ""
	}
	defer resp.Body.Close()
	var result struct {
		UserID      uint   `json:"user_id"`
		AccessToken string `json:"access_token"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&result)
	log.Printf("loginUser: %s logged in as %d", email, result.UserID)
	return result.UserID, result.AccessToken
}

//
// CONVERSATIONS Group Functions
//

func createConversation(token, typ, name string, memberIDs []uint) uint {
	payload := map[string]any{"type": typ, "name": name, "member_ids": memberIDs}
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", base+"/conversations", bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Println("Error in createConversation:", err)
		return 0
	}
	defer resp.Body.Close()
	var out struct {
		ID uint `json:"id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	log.Printf("createConversation %s status: %s id: %d", typ, resp.Status, out.ID)
	return out.ID
}

func listConversations(token string) {
	req, _ := http.NewRequest("GET", base+"/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Println("Error in listConversations:", err)
		return
	}
	defer resp.Body.Close()
	log.Println("listConversations status:", resp.Status)
}

func markRead(token string, convID uint) {
	req, _ := http.NewRequest("POST", fmt.Sprintf("%s/conversations/%d/read", base, convID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Println("Error in markRead:", err)
		return
	}
	defer resp.Body.Close()
	log.Println("markRead status:", resp.Status)
}

func setTyping(token string, convID uint) {
	req, _ := http.NewRequest("POST", fmt.Sprintf("%s/conversations/%d/typing", base, convID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Println("Error in setTyping:", err)
		return
	}
	defer resp.Body.Close()
	log.Println("setTyping status:", resp.Status)
}

func listTyping(token string, convID uint) {
	req, _ := http.NewRequest("GET", fmt.Sprintf("%s/conversations/%d/typing", base, convID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Println("Error in listTyping:", err)
		return
	}
	defer resp.Body.Close()
	log.Println("listTyping status:", resp.Status)
}

//
// MESSAGES Group Functions
//

func sendText(token string, convID uint, text string) uint {
	payload := map[string]string{
		"content":      message.EncodeContent(text),
		"message_type": "TEXT",
	}
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", fmt.Sprintf("%s/conversations/%d/messages", base, convID), bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", gofakeit.UUID())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Println("Error in sendText:", err)
		return 0
	}
	defer resp.Body.Close()
	var out struct {
		ID uint `json:"id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	log.Printf("sendText status: %s id: %d", resp.Status, out.ID)
	return out.ID
}

func listMessages(token string, convID uint) {
	req, _ := http.NewRequest("GET", fmt.Sprintf("%s/conversations/%d/messages?limit=20", base, convID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Println("Error in listMessages:", err)
		return
	}
	defer resp.Body.Close()
	log.Println("listMessages status:", resp.Status)
}

//
// REACTIONS Group Functions
//

func addReaction(token string, msgID uint, emoji string) {
	data, _ := json.Marshal(map[string]string{"emoji": emoji})
	req, _ := http.NewRequest("POST", fmt.Sprintf("%s/messages/%d/reactions", base, msgID), bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Println("Error in addReaction:", err)
		return
	}
	defer resp.Body.Close()
	log.Println("addReaction status:", resp.Status)
}

func removeReaction(token string, msgID uint, emoji string) {
	req, _ := http.NewRequest("DELETE", fmt.Sprintf("%s/messages/%d/reactions/%s", base, msgID, emoji), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Println("Error in removeReaction:", err)
		return
	}
	defer resp.Body.Close()
	log.Println("removeReaction status:", resp.Status)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
